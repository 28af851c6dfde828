package jwt

import (
	"testing"
	"time"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	service := NewService("test-secret", time.Hour, 24*time.Hour)

	pair, err := service.GenerateTokenPair(42, "device-1", PlatformTerminal)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("tokens should not be empty")
	}
	if pair.ExpiresAt <= time.Now().Unix() {
		t.Error("ExpiresAt should be in the future")
	}

	claims, err := service.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.UserID != 42 || claims.DeviceID != "device-1" || claims.Platform != PlatformTerminal {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidate_WrongTokenType(t *testing.T) {
	service := NewService("test-secret", time.Hour, 24*time.Hour)
	pair, _ := service.GenerateTokenPair(1, "d", PlatformWeb)

	if _, err := service.ValidateAccessToken(pair.RefreshToken); err != ErrTokenInvalid {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
	if _, err := service.ValidateRefreshToken(pair.AccessToken); err != ErrTokenInvalid {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
	if _, err := service.ValidateRefreshToken(pair.RefreshToken); err != nil {
		t.Errorf("refresh token rejected: %v", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	pair, _ := NewService("secret-a", time.Hour, time.Hour).GenerateTokenPair(1, "d", PlatformWeb)

	if _, err := NewService("secret-b", time.Hour, time.Hour).ValidateAccessToken(pair.AccessToken); err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidate_Expired(t *testing.T) {
	service := NewService("test-secret", time.Minute, time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	service.now = func() time.Time { return issued }
	pair, err := service.GenerateTokenPair(1, "d", PlatformWeb)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	service.now = time.Now
	if _, err := service.ValidateAccessToken(pair.AccessToken); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestValidate_Garbage(t *testing.T) {
	service := NewService("test-secret", time.Hour, time.Hour)
	for _, token := range []string{"", "abc", "a.b.c"} {
		if _, err := service.ValidateAccessToken(token); err != ErrTokenInvalid {
			t.Errorf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestParsePlatform(t *testing.T) {
	tests := map[string]Platform{
		"web":      PlatformWeb,
		"terminal": PlatformTerminal,
		"mobile":   PlatformMobile,
		"toaster":  PlatformUnknown,
		"":         PlatformUnknown,
	}
	for in, want := range tests {
		if got := ParsePlatform(in); got != want {
			t.Errorf("ParsePlatform(%q) = %s, want %s", in, got, want)
		}
	}
}
