// Package bbcode reduces forum markup to plain text for previews and search snippets.
package bbcode

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	spoilerSquare = "⬛"
	hrRule        = "--------"
	// hrMarker stands in for the dashes of [hr] until the text is trimmed. Its line breaks are
	// real, so quote cleanup sees them, and a rule at either end keeps its outer break.
	hrMarker = "\x00hr\x00"
)

var (
	reSpoiler      = regexp.MustCompile(`(?is)\[spoiler(?:=.*?)?\](.*?)\[/spoiler\]`)
	reHr           = regexp.MustCompile(`(?i)\[hr\]`)
	reYoutube      = regexp.MustCompile(`(?is)\[youtube\](.*?)\[/youtube\]`)
	reYt           = regexp.MustCompile(`(?is)\[yt\](.*?)\[/yt\]`)
	reQuoteOpen    = regexp.MustCompile(`(?is)\[quote(?:=.*?)?\]`)
	reQuoteClose   = regexp.MustCompile(`(?i)\[/quote\]`)
	reCosmeticTags = regexp.MustCompile(`(?is)\[/?(font|size|pxsize|color|justify|code|marquee|rawtext|b|i|u|s|url|email|img|list|li|\*|center)(?:=[^\]]*)?\]`)
	reQuoteBreak   = regexp.MustCompile(`>\s*\n`)
)

// StripBBCode converts markup to plain text. The rules run in a fixed order:
// spoilers, [hr], youtube links, quotes, cosmetic tags, quote line breaks, trimming.
func StripBBCode(text string) string {
	if text == "" {
		return ""
	}

	text = reSpoiler.ReplaceAllStringFunc(text, func(m string) string {
		content := reSpoiler.FindStringSubmatch(m)[1]
		return strings.Repeat(spoilerSquare, utf8.RuneCountInString(content)/3)
	})

	text = reHr.ReplaceAllLiteralString(text, "\n"+hrMarker+"\n")

	text = reYoutube.ReplaceAllString(text, "https://www.youtube.com/watch?v=${1}")
	text = reYt.ReplaceAllString(text, "https://www.youtube.com/watch?v=${1}")

	text = reQuoteOpen.ReplaceAllLiteralString(text, "> ")
	text = reQuoteClose.ReplaceAllLiteralString(text, "")

	text = reCosmeticTags.ReplaceAllLiteralString(text, "")

	text = reQuoteBreak.ReplaceAllLiteralString(text, "> ")

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, hrMarker) {
		text = "\n" + text
	}
	if strings.HasSuffix(text, hrMarker) {
		text += "\n"
	}

	return strings.ReplaceAll(text, hrMarker, hrRule)
}
