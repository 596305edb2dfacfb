package matching

import (
	"reflect"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase and collapse", in: "  iPhone   13  Pro ", want: "iphone 13 pro"},
		{name: "separators become spaces", in: "чехол-книжка, для.айфона", want: "чехол книжка для айфона"},
		{name: "underscores", in: "mountain_bike", want: "mountain bike"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "russian genitive", in: "айфона", want: "айфон"},
		{name: "russian plural", in: "книгами", want: "книг"},
		{name: "english plural", in: "bikes", want: "bike"},
		{name: "english gerund", in: "climbing", want: "climb"},
		{name: "short token untouched", in: "стол", want: "стол"},
		{name: "no matching suffix", in: "сапог", want: "сапог"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stem(tt.in); got != tt.want {
				t.Errorf("Stem(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContentTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "stopwords and duplicates dropped",
			in:   "чехол для айфона и чехол",
			want: []string{"чехол", "айфон"},
		},
		{
			name: "english stopwords",
			in:   "new bike for the kids",
			want: []string{"bike", "kids"},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentTokens(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ContentTokens(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransliterate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "велосипед", want: "velosiped"},
		{in: "щука", want: "schuka"},
		{in: "iphone", want: "iphone"},
		{in: "объём", want: "obem"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Transliterate(tt.in); got != tt.want {
				t.Errorf("Transliterate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
