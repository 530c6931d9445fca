// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"BandAnalyzer/src/datasource/file"
	"BandAnalyzer/src/storage"
)

// AttachmentHandler 把目标邮件中的 CSV / XLSX 导出文件保存到数据目录
type AttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	Logger        *storage.Logger // 可以为 nil
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex    // 保护processedUIDs的读写锁
}

func NewAttachmentHandler(subject, dataDir string, logger *storage.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		Logger:        logger,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed 检查邮件是否已处理过
func (h *AttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存附件, 见 Save
func (h *AttachmentHandler) Handle(email *Email) error {
	_, err := h.Save(email)
	return err
}

// Save 保存邮件中的导出文件并返回保存路径
// 已处理或主题不匹配的邮件返回空列表
func (h *AttachmentHandler) Save(email *Email) ([]string, error) {
	if h.IsProcessed(email.UID) {
		return nil, nil
	}
	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.log(fmt.Sprintf("跳过主题不匹配的邮件: %s", email.Subject))
		return nil, nil
	}

	h.log(fmt.Sprintf("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05")))

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	var saved []string
	for _, attachment := range DataAttachments(email) {
		// 附件名只保留文件名部分
		filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return saved, fmt.Errorf("保存附件失败: %w", err)
		}
		h.log(fmt.Sprintf("附件已保存到: %s", filePath))
		saved = append(saved, filePath)
	}

	if len(saved) > 0 {
		h.markAsProcessed(email.UID)
	}
	return saved, nil
}

func (h *AttachmentHandler) log(msg string) {
	if h.Logger != nil {
		h.Logger.Info(msg)
	}
}

// DataAttachments 邮件中可以读取的导出文件附件
func DataAttachments(email *Email) []*Attachment {
	var out []*Attachment
	for _, a := range email.Attachments {
		if file.Supported(a.Filename) {
			out = append(out, a)
		}
	}
	return out
}
