package models

import "strings"

// LanguageAuto asks the translator to detect the source language. It is
// valid only as a source language.
const LanguageAuto = "auto"

// supportedLanguages is the closed set of language codes both translators
// accept. Values map the code to an English display name used in prompts.
var supportedLanguages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ar": "Arabic",
	"hi": "Hindi",
	"nl": "Dutch",
	"pl": "Polish",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
}

// IsSupportedLanguage reports whether code is a known target language code.
func IsSupportedLanguage(code string) bool {
	_, ok := supportedLanguages[strings.ToLower(code)]
	return ok
}

// IsSupportedSourceLanguage additionally accepts "auto".
func IsSupportedSourceLanguage(code string) bool {
	return strings.EqualFold(code, LanguageAuto) || IsSupportedLanguage(code)
}

// LanguageName returns the English display name for a language code, or the
// code itself if unknown.
func LanguageName(code string) string {
	if name, ok := supportedLanguages[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// SameLanguage compares two language codes case-insensitively.
func SameLanguage(a, b string) bool {
	return strings.EqualFold(a, b)
}
