package validation

import (
	"strings"
	"testing"
)

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"report.pdf", false},
		{"Q3 budget (final).xlsx", false},
		{"", true},
		{"   ", true},
		{"../etc/passwd", true},
		{`dir\file.txt`, true},
		{"..", true},
		{"bad\x00name", true},
		{strings.Repeat("a", 256), true},
	}
	for _, tt := range tests {
		err := ValidateFileName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFileName(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestParseTags(t *testing.T) {
	got, err := ParseTags(" finance, q3 ,,legal ")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, "|") != "finance|q3|legal" {
		t.Errorf("ParseTags = %v", got)
	}

	if _, err := ParseTags(strings.Repeat("x,", 25)); err == nil {
		t.Error("ParseTags accepted 25 tags")
	}
}

func TestDetectMimeType(t *testing.T) {
	r := strings.NewReader("%PDF-1.7 fake")
	got, err := DetectMimeType(r, "report.pdf", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "application/pdf" {
		t.Errorf("DetectMimeType = %q, want application/pdf", got)
	}
	if pos, _ := r.Seek(0, 1); pos != 0 {
		t.Errorf("reader not rewound, at %d", pos)
	}

	got, _ = DetectMimeType(strings.NewReader("\x00\x01\x02"), "blob.unknownext", "application/x-custom")
	if got != "application/x-custom" {
		t.Errorf("DetectMimeType fallback = %q", got)
	}
}

func TestValidateEmpID(t *testing.T) {
	for _, ok := range []string{"EMP-001", "a_b"} {
		if err := ValidateEmpID(ok); err != nil {
			t.Errorf("ValidateEmpID(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "emp 1", "émp"} {
		if err := ValidateEmpID(bad); err == nil {
			t.Errorf("ValidateEmpID(%q) accepted", bad)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Error("short password accepted")
	}
	if err := ValidatePassword("mypassword-is-long"); err == nil {
		t.Error("weak pattern accepted")
	}
	if err := ValidatePassword("correct horse battery staple"); err != nil {
		t.Errorf("strong password rejected: %v", err)
	}
}
