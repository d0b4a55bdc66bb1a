/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogging stays quiet unless --verbose is set, then logs everything.
func setupLogging(cfg *Config, w io.Writer) {
	level := zerolog.WarnLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: logDate}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// drainErrors logs write errors reported by handlers until errs is closed.
func drainErrors(errs <-chan error) {
	for err := range errs {
		log.Error().Err(err).Msg("SERVE: write failed")
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
