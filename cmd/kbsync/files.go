package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"cqa-workers/internal/kb"
	"cqa-workers/internal/kbsync"
)

const (
	utterancesFile = "utterances.yaml"
	convosFile     = "convos.yaml"
)

func writeTestCases(dir string, utterances []kb.UtteranceSet, convos []kb.Conversation) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := writeYAML(filepath.Join(dir, utterancesFile), utterances); err != nil {
		return err
	}
	return writeYAML(filepath.Join(dir, convosFile), convos)
}

// readTestCases loads both files from dir. A missing convos file means no answers are given.
func readTestCases(dir string) (kbsync.ExportData, error) {
	var data kbsync.ExportData
	if err := readYAML(filepath.Join(dir, utterancesFile), &data.Utterances); err != nil {
		return data, err
	}
	err := readYAML(filepath.Join(dir, convosFile), &data.Convos)
	if err != nil && !os.IsNotExist(err) {
		return data, err
	}
	return data, nil
}

func writeYAML(path string, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readYAML(path string, v interface{}) error {
	in, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(in, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
