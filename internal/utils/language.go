// Package utils holds small helpers shared across the AI pipeline.
package utils

import (
	"regexp"
	"strings"
)

// Language codes
const (
	LangEnglish  = "en"
	LangHebrew   = "he"
	LangArabic   = "ar"
	LangRussian  = "ru"
	LangChinese  = "zh"
	LangJapanese = "ja"
	LangKorean   = "ko"
)

// Language is a detected message language. Reply drafting uses Name to ask
// the model to answer in the customer's language.
type Language struct {
	Code       string
	Name       string
	Confidence float64
}

var scripts = []struct {
	code    string
	name    string
	pattern *regexp.Regexp
}{
	{LangHebrew, "Hebrew", regexp.MustCompile(`[\x{0590}-\x{05FF}]`)},
	{LangArabic, "Arabic", regexp.MustCompile(`[\x{0600}-\x{06FF}]`)},
	{LangRussian, "Russian", regexp.MustCompile(`[\x{0400}-\x{04FF}]`)},
	{LangChinese, "Chinese", regexp.MustCompile(`[\x{4E00}-\x{9FFF}]`)},
	{LangJapanese, "Japanese", regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}]`)},
	{LangKorean, "Korean", regexp.MustCompile(`[\x{AC00}-\x{D7AF}]`)},
}

var kanaPattern = regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}]`)

// DetectLanguage guesses the language of text from its script composition.
// Latin-script languages all come back as English; that is fine for the
// reply prompt, which only adds an instruction for non-English text.
func DetectLanguage(text string) Language {
	text = strings.TrimSpace(text)
	if text == "" {
		return Language{Code: LangEnglish, Name: "English"}
	}

	total := float64(len([]rune(text)))
	best := Language{Code: LangEnglish, Name: "English"}

	for _, script := range scripts {
		ratio := float64(len(script.pattern.FindAllString(text, -1))) / total
		if ratio > 0.1 && ratio > best.Confidence {
			best = Language{Code: script.code, Name: script.name, Confidence: ratio}
		}
	}

	// CJK ideographs are shared; any meaningful amount of kana means the
	// text is Japanese, not Chinese.
	if best.Code == LangChinese {
		kanaRatio := float64(len(kanaPattern.FindAllString(text, -1))) / total
		if kanaRatio > 0.05 {
			best.Code = LangJapanese
			best.Name = "Japanese"
		}
	}

	return best
}
