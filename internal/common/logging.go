package common

import (
	"io"
	"log"
	"os"
)

var (
	logger = log.New(os.Stderr, "[logopack] ", log.LstdFlags|log.Lmicroseconds)
)

// SetLogOutput redirects the package logger, for example to a rotating file
// next to stderr.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}
