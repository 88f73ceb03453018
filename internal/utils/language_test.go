package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantCode string
	}{
		{"english", "Hello, where is my refund?", LangEnglish},
		{"empty text defaults to english", "", LangEnglish},
		{"hebrew", "שלום, איפה ההחזר שלי?", LangHebrew},
		{"arabic", "مرحبا، أين استرداد أموالي؟", LangArabic},
		{"russian", "Здравствуйте, где мой возврат?", LangRussian},
		{"chinese", "你好，我的退款在哪里？", LangChinese},
		{"japanese kana over shared ideographs", "こんにちは、返金はどこですか？", LangJapanese},
		{"korean", "안녕하세요, 환불은 어디에 있나요?", LangKorean},
		{"mostly english with a few foreign words", "Please process my refund for order #123, thanks! ok", LangEnglish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang := DetectLanguage(tt.text)
			assert.Equal(t, tt.wantCode, lang.Code)
		})
	}
}

func TestDetectLanguage_NameFeedsReplyPrompt(t *testing.T) {
	lang := DetectLanguage("שלום, איפה ההחזר שלי?")
	assert.Equal(t, "Hebrew", lang.Name)
	assert.Greater(t, lang.Confidence, 0.1)
}
