// Package config reads pipeline settings from the environment.
package config

import (
	"os"
	"strconv"
)

type Config struct {
	DataURI          string
	SampleCap        int
	Seed             int64
	EmbedDim         int
	HiddenDim        int
	Epochs           int
	BatchSize        int
	LearningRate     float64
	CheckpointDir    string
	CheckpointFormat string
	ReportSamples    int
	LogEvery         int
	EarlyStopping    bool
	Patience         int
}

func Load() Config {
	return Config{
		DataURI:          getenv("TRANSLATOR_DATA_URI", "./data/deu-eng.zip"),
		SampleCap:        getenvInt("TRANSLATOR_SAMPLE_CAP", 10000),
		Seed:             getenvInt64("TRANSLATOR_SEED", 12),
		EmbedDim:         getenvInt("TRANSLATOR_EMBED_DIM", 256),
		HiddenDim:        getenvInt("TRANSLATOR_HIDDEN_DIM", 256),
		Epochs:           getenvInt("TRANSLATOR_EPOCHS", 30),
		BatchSize:        getenvInt("TRANSLATOR_BATCH_SIZE", 64),
		LearningRate:     getenvFloat("TRANSLATOR_LEARNING_RATE", 0.001),
		CheckpointDir:    getenv("TRANSLATOR_CHECKPOINT_DIR", "./checkpoints"),
		CheckpointFormat: getenv("TRANSLATOR_CHECKPOINT_FORMAT", "json"),
		ReportSamples:    getenvInt("TRANSLATOR_REPORT_SAMPLES", 10),
		LogEvery:         getenvInt("TRANSLATOR_LOG_EVERY", 0),
		EarlyStopping:    getenvBool("TRANSLATOR_EARLY_STOPPING", false),
		Patience:         getenvInt("TRANSLATOR_PATIENCE", 5),
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvInt64(k string, fallback int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(k string, fallback float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
