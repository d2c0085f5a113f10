package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Evidence 截图存档
type Evidence struct {
	Dir    string
	Prefix string
	Now    func() time.Time
}

// Save 保存截图，文件名为 <prefix>_<tag>_<YYYYMMDD_HHMMSS>.png
func (e Evidence) Save(tag string, png []byte) (string, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%s.png", e.Prefix, tag, now().Format("20060102_150405"))
	path := filepath.Join(e.Dir, name)
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", err
	}
	return path, nil
}
