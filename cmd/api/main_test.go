package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"visual-spec-compiler/internal/config"
	"visual-spec-compiler/internal/storage"
)

func TestWriteTimeout(t *testing.T) {
	t.Run("GenerationPlusMirror", func(t *testing.T) {
		cfg := &config.Config{FIBOTimeout: 60 * time.Second, LLMTimeout: 30 * time.Second}
		assert.Equal(t, 60*time.Second+storage.MirrorTimeout+15*time.Second, writeTimeout(cfg))
	})

	t.Run("SlowAgent", func(t *testing.T) {
		cfg := &config.Config{FIBOTimeout: 10 * time.Second, LLMTimeout: 120 * time.Second}
		assert.Equal(t, 135*time.Second, writeTimeout(cfg))
	})
}
