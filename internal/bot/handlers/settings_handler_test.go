package handlers

import (
	"errors"
	"testing"

	"github.com/avdotin/psychodetective/internal/database"
)

func TestParseProfileInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    [4]string
		wantErr bool
	}{
		{
			name:  "full",
			input: "Анна; женский; 25-34; люблю путешествия",
			want:  [4]string{"Анна", "женский", "25-34", "люблю путешествия"},
		},
		{
			name:  "name only",
			input: "Анна",
			want:  [4]string{"Анна", "", "", ""},
		},
		{
			name:  "extra whitespace",
			input: "  Анна ;  мужской ;; ",
			want:  [4]string{"Анна", "мужской", "", ""},
		},
		{
			name:    "empty name",
			input:   "; женский; 25-34; текст",
			wantErr: true,
		},
		{
			name:    "too many fields",
			input:   "а; б; в; г; д",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			name, gender, age, bio, err := parseProfileInput(tc.input)
			if tc.wantErr {
				if !errors.Is(err, database.ErrValidation) {
					t.Errorf("parseProfileInput(%q) error = %v, want ErrValidation", tc.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseProfileInput(%q) error = %v", tc.input, err)
			}
			got := [4]string{name, gender, age, bio}
			if got != tc.want {
				t.Errorf("parseProfileInput(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}
