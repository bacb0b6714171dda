package internal

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DBName            string `json:"db-name"`
	HTTPServerPort    uint16 `json:"http-server-port"`
	FeedPort          uint16 `json:"feed-port"` // 0 disables the wire publisher
	TemplateDirectory string `json:"template-directory"`
	LogDirectory      string `json:"log-directory"`
	EnableLogging     bool   `json:"enable-logging"`
	ReadTimeout       int64  `json:"read-timeout"`
	WriteTimeout      int64  `json:"write-timeout"`
	SecretKey         string `json:"secret-key"`
	TypingDebounceMS  int64  `json:"typing-debounce-ms"` // 0 keeps the 2000ms default
}

func LoadConfig(folderPath string) (*Config, error) {

	file, err := os.OpenFile(filepath.Join(folderPath, ".cfg"), os.O_RDONLY, 0755)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var config *Config = &Config{}
	if err = json.Unmarshal(payload, config); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) TypingDebounce() time.Duration {
	if c.TypingDebounceMS <= 0 {
		return 0
	}
	return time.Duration(c.TypingDebounceMS) * time.Millisecond
}

// RetrieveWebTemplates maps each page template to itself plus the shared
// layout files, the set the page renderer parses together.
func RetrieveWebTemplates(templateDir string) (map[string][]string, error) {

	mapping := make(map[string][]string)

	layoutPath := filepath.Join(templateDir, "layouts")
	layoutFiles, err := filepath.Glob(filepath.Join(layoutPath, "*.html"))
	if err != nil {
		return nil, err
	}

	pageFiles, err := filepath.Glob(filepath.Join(templateDir, "*.html"))
	if err != nil {
		return nil, err
	}

	for _, page := range pageFiles {
		files := append([]string{}, layoutFiles...)
		files = append(files, page)
		mapping[filepath.Base(page)] = files
	}

	return mapping, nil
}
