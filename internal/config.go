// Package internal holds the process configuration, loaded from the
// environment.
package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string        `env:"BLUGE_FILEPATH,required=true"`
	FilesRoot      string        `env:"FILES_ROOT,required=true"`
	LogLevel       string        `env:"LOG_LEVEL,required=true"`
	JWTSecret      string        `env:"JWT_SECRET,required=true"`
	TokenDuration  time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	BannedWords     string `env:"BANNED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`

	HealthInterval time.Duration `env:"HEALTH_INTERVAL,default=30s"`
	GCInterval     time.Duration `env:"GC_INTERVAL,default=5m"`

	// S3 settings are optional; when the bucket is empty attachments go
	// to the local filesystem under FilesRoot.
	S3Region    string `env:"S3_REGION"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
}

// CharacterRune validates that the replacement setting is one rune.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}

// BannedWordList splits the comma-separated dictionary, dropping blanks.
func (c Config) BannedWordList() []string {
	var words []string
	for _, w := range strings.Split(c.BannedWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}
