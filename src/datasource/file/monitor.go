// monitor.go
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle 最后一次写事件之后等待的时间, 复制中的文件不会被读取
const DefaultSettle = 500 * time.Millisecond

// FileMonitor 监听目录中新出现或被改写的导出文件
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	lastMod  map[string]time.Time
	Settle   time.Duration // 为 0 时使用 DefaultSettle
	mu       sync.Mutex
}

func NewFileMonitor(dir string) (*FileMonitor, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
		lastMod:  make(map[string]time.Time),
		Settle:   DefaultSettle,
	}, nil
}

// Watch 阻塞直到 ctx 结束或 watcher 出错
// 事件平静 Settle 之后才回调; handler 在同一个 goroutine 中依次执行,
// 排队中的文件总是最新的那个. 返回前等待正在执行的 handler 结束
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	pending := make(chan string, 1)
	worker := make(chan struct{})
	go func() {
		defer close(worker)
		for path := range pending {
			handler(path)
		}
	}()
	defer func() {
		close(pending)
		<-worker
	}()

	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	var latest string
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !Supported(event.Name) {
				continue
			}
			latest = event.Name
			settle.Reset(m.settle())
		case <-settle.C:
			if m.changed(latest) {
				offer(pending, latest)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) settle() time.Duration {
	if m.Settle <= 0 {
		return DefaultSettle
	}
	return m.Settle
}

// changed 同一文件修改时间没有变化时不会重复回调
func (m *FileMonitor) changed(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !info.ModTime().After(m.lastMod[path]) {
		return false
	}
	m.lastMod[path] = info.ModTime()
	return true
}

// offer 替换队列中尚未处理的旧路径
func offer(pending chan string, path string) {
	for {
		select {
		case pending <- path:
			return
		default:
			select {
			case <-pending:
			default:
			}
		}
	}
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}

// LatestFile 目录中最新修改的导出文件, 没有时返回空串
func LatestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}

	var (
		latest  string
		latestT time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestT) {
			latest = filepath.Join(dir, entry.Name())
			latestT = info.ModTime()
		}
	}
	return latest, nil
}

// ensureDir 确保目录存在
func ensureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}
