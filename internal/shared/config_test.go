package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./playvert.db" {
			t.Errorf("expected database path ./playvert.db, got %s", config.Database.Path)
		}

		if config.Database.Driver != "sqlite" {
			t.Errorf("expected sqlite driver, got %s", config.Database.Driver)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Conversion.RateLimit != 20 {
			t.Errorf("expected rate limit 20, got %d", config.Conversion.RateLimit)
		}

		if config.Conversion.FetchTimeout.Duration != 60*time.Second {
			t.Errorf("expected fetch timeout 60s, got %v", config.Conversion.FetchTimeout)
		}

		if config.Conversion.ShareTTL.Duration != 24*time.Hour {
			t.Errorf("expected share ttl 24h, got %v", config.Conversion.ShareTTL)
		}

		if config.Conversion.MatchChunkSize != 20 || config.Conversion.InsertChunkSize != 100 {
			t.Errorf("unexpected chunk sizes %d/%d", config.Conversion.MatchChunkSize, config.Conversion.InsertChunkSize)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"

[credentials.apple]
developer_token = "dev-token"

[conversion]
rate_limit = 5
fetch_timeout = "15s"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Credentials.Apple.DeveloperToken != "dev-token" {
			t.Errorf("expected apple developer token, got %s", config.Credentials.Apple.DeveloperToken)
		}

		if config.Conversion.RateLimit != 5 || config.Conversion.FetchTimeout.Duration != 15*time.Second {
			t.Errorf("conversion overrides not applied: %+v", config.Conversion)
		}

		if config.Conversion.InsertChunkSize != 100 {
			t.Errorf("expected missing keys to keep defaults, got insert chunk %d", config.Conversion.InsertChunkSize)
		}
	})

	t.Run("LoadConfig rejects bad durations", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[conversion]\nfetch_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected an error for an unparseable duration")
		}
	})

	t.Run("SaveConfig round trips tokens", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

		if err := config.Credentials.Spotify.Update(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("SaveConfig failed: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil || token.AccessToken != "a" || token.RefreshToken != "r" || !token.Expiry.Equal(expiry) {
			t.Errorf("unexpected token after round trip: %+v", token)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("APPLE_DEV_TOKEN=from-dotenv\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("SPOTIFY_CLIENT_ID", "env-client")
		t.Setenv("RATE_LIMIT", "7")
		t.Cleanup(func() { os.Unsetenv("APPLE_DEV_TOKEN") })

		config := DefaultConfig()
		if err := config.ApplyEnv(envPath); err != nil {
			t.Fatalf("ApplyEnv failed: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env-client" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Apple.DeveloperToken != "from-dotenv" {
			t.Errorf("expected dotenv developer token, got %s", config.Credentials.Apple.DeveloperToken)
		}
		if config.Conversion.RateLimit != 7 {
			t.Errorf("expected rate limit 7, got %d", config.Conversion.RateLimit)
		}

		t.Run("missing env file is ignored", func(t *testing.T) {
			if err := DefaultConfig().ApplyEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
				t.Errorf("expected missing .env to be ignored, got %v", err)
			}
		})

		t.Run("bad numbers fail", func(t *testing.T) {
			t.Setenv("PLAYVERT_PORT", "eighty")
			if err := DefaultConfig().ApplyEnv(""); err == nil {
				t.Error("expected error for non-numeric port")
			}
		})
	})
}
