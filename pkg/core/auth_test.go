package core

import "testing"

func TestValidateAuthToken(t *testing.T) {
	tests := []struct {
		token   string
		wantErr bool
	}{
		{"a1b2c3d4e5f6g7h8", false},
		{"", true},
		{"short", true},
		{"password12345678", true},
		{"xxAdminxxxxxxxxxxx", true},
	}
	for _, tt := range tests {
		if err := ValidateAuthToken(tt.token); (err != nil) != tt.wantErr {
			t.Errorf("ValidateAuthToken(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
		}
	}
}

func TestAuthenticateBearer(t *testing.T) {
	const expected = "validtokenvalue01"

	if err := AuthenticateBearer("Bearer "+expected, expected); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	tests := []struct {
		header  string
		message string
	}{
		{"", "Missing Authorization header"},
		{"Token " + expected, "Invalid Authorization header format"},
		{"Bearer" + expected, "Invalid Authorization header format"},
		{"Bearer wrong", "Invalid bearer token"},
	}
	for _, tt := range tests {
		err := AuthenticateBearer(tt.header, expected)
		e := AsError(err)
		if e == nil || e.Message != tt.message {
			t.Errorf("AuthenticateBearer(%q) = %v, want %q", tt.header, err, tt.message)
			continue
		}
		if e.HTTPStatus() != 401 {
			t.Errorf("status = %d, want 401", e.HTTPStatus())
		}
	}
}

func TestSecureCompareString(t *testing.T) {
	if !SecureCompareString("abc", "abc") {
		t.Error("equal strings should match")
	}
	if SecureCompareString("abc", "abd") || SecureCompareString("abc", "abcd") {
		t.Error("different strings should not match")
	}
}
