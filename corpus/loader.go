package corpus

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Pair is a single bilingual sentence pair. Pairs are immutable once loaded.
type Pair struct {
	Source string
	Target string
}

// Options controls corpus loading.
type Options struct {
	// SampleCap limits the corpus to the leading N lines of the file.
	// Zero means no cap.
	SampleCap int
}

// DefaultSampleCap matches the sample count the pipeline was designed
// around. Larger corpora work but slow the CPU training loop considerably.
const DefaultSampleCap = 10000

// Load reads sentence pairs from a zip archive at a local path. The archive
// must contain at least one .txt member with one tab-separated pair per line.
func Load(path string, opts Options) ([]Pair, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus archive: %w", err)
	}
	defer reader.Close()

	member, err := findTextMember(&reader.Reader)
	if err != nil {
		return nil, err
	}

	file, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive member %s: %w", member.Name, err)
	}
	defer file.Close()

	return readPairs(file, opts.SampleCap)
}

// LoadURI loads a corpus archive from an http(s) URL or a local file path.
// Remote archives are downloaded to a temporary file first.
func LoadURI(uri string, opts Options) ([]Pair, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		path, err := Fetch(uri)
		if err != nil {
			return nil, err
		}
		defer os.Remove(path)
		return Load(path, opts)
	}
	return Load(uri, opts)
}

// Fetch downloads an archive to a temporary file and returns its path. The
// caller owns the file.
func Fetch(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch corpus archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("corpus download returned status %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "corpus-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write corpus archive: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close corpus archive: %w", err)
	}

	return tmp.Name(), nil
}

func findTextMember(reader *zip.Reader) (*zip.File, error) {
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if filepath.Ext(f.Name) == ".txt" {
			return f, nil
		}
	}
	return nil, fmt.Errorf("archive contains no .txt member")
}

// readPairs parses tab-separated sentence pairs, reading at most cap leading
// lines when cap > 0. Blank lines are skipped, since archive exports commonly
// end with a trailing newline; any other line without exactly one tab is a
// malformed corpus and aborts the load.
func readPairs(r io.Reader, cap int) ([]Pair, error) {
	var pairs []Pair
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		if cap > 0 && lineNo >= cap {
			break
		}
		lineNo++

		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed corpus line %d: expected exactly one tab separator, got %d", lineNo, len(fields)-1)
		}

		pairs = append(pairs, Pair{Source: fields[0], Target: fields[1]})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	return pairs, nil
}

// Sources extracts the source-language sentences in order.
func Sources(pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Source
	}
	return out
}

// Targets extracts the target-language sentences in order.
func Targets(pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Target
	}
	return out
}
