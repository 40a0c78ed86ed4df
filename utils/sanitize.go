package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// PlainText strips all markup. Used for win notes and other free text stored verbatim.
func PlainText(input string) string {
	return strings.TrimSpace(strict.Sanitize(input))
}

// Sanitize keeps safe formatting; therapists may use it in psychoeducation text.
func Sanitize(input string) string {
	return ugc.Sanitize(input)
}
