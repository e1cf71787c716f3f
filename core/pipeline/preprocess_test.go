package pipeline

import (
	"strings"
	"testing"
)

func TestPreprocessorRun(t *testing.T) {
	p := NewPreprocessor()

	tests := []struct {
		name         string
		text         string
		declaredLang string
		wantClean    string
		wantLang     string
		wantHashtags []string
		wantMentions []string
	}{
		{
			name:      "plain text untouched",
			text:      "Building collapsed in Hatay",
			wantClean: "Building collapsed in Hatay",
			wantLang:  "en",
		},
		{
			name:      "urls stripped",
			text:      "flooding here https://example.com/a?b=c see photos",
			wantClean: "flooding here see photos",
			wantLang:  "en",
		},
		{
			name:         "mentions stripped but recorded",
			text:         "@redcross please send help",
			wantClean:    "please send help",
			wantLang:     "en",
			wantMentions: []string{"redcross"},
		},
		{
			name:         "camelcase hashtag segmented",
			text:         "rescue underway #TurkeyEarthquake",
			wantClean:    "rescue underway Turkey Earthquake",
			wantLang:     "en",
			wantHashtags: []string{"TurkeyEarthquake"},
		},
		{
			name:         "lowercase hashtag kept as is",
			text:         "#earthquake hit the city",
			wantClean:    "earthquake hit the city",
			wantLang:     "en",
			wantHashtags: []string{"earthquake"},
		},
		{
			name:         "retweet prefix stripped",
			text:         "RT @redcross water rising fast",
			wantClean:    "water rising fast",
			wantLang:     "en",
			wantMentions: []string{"redcross"},
		},
		{
			name:      "zero width characters removed",
			text:      "help\u200b needed\ufeff now",
			wantClean: "help needed now",
			wantLang:  "en",
		},
		{
			name:         "declared language wins",
			text:         "ayuda urgente",
			declaredLang: "es",
			wantClean:    "ayuda urgente",
			wantLang:     "es",
		},
		{
			name:      "arabic script detected",
			text:      "مساعدة عاجلة",
			wantClean: "مساعدة عاجلة",
			wantLang:  "ar",
		},
		{
			name:      "devanagari script detected",
			text:      "मदद चाहिए",
			wantClean: "मदद चाहिए",
			wantLang:  "hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Run(tt.text, tt.declaredLang)

			if got.CleanText != tt.wantClean {
				t.Errorf("CleanText = %q, want %q", got.CleanText, tt.wantClean)
			}
			if got.Language != tt.wantLang {
				t.Errorf("Language = %q, want %q", got.Language, tt.wantLang)
			}
			if strings.Join(got.Hashtags, ",") != strings.Join(tt.wantHashtags, ",") {
				t.Errorf("Hashtags = %v, want %v", got.Hashtags, tt.wantHashtags)
			}
			if strings.Join(got.Mentions, ",") != strings.Join(tt.wantMentions, ",") {
				t.Errorf("Mentions = %v, want %v", got.Mentions, tt.wantMentions)
			}
		})
	}
}

func TestSegmentHashtag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"TurkeyEarthquake", "Turkey Earthquake"},
		{"earthquake", "earthquake"},
		{"SOS", "SOS"},
		{"HelpNeededNow", "Help Needed Now"},
	}
	for _, tt := range tests {
		if got := segmentHashtag(tt.in); got != tt.want {
			t.Errorf("segmentHashtag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
