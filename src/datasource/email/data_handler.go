// data_handler.go
package email

import (
	"errors"
	"fmt"

	"BandAnalyzer/src/datasource/file"
	"BandAnalyzer/src/timeseries"
)

var ErrNoAttachment = errors.New("no csv or xlsx attachment")

// DataLoader 把邮件附件解析成数据集并整体替换到 Store
type DataLoader struct {
	Store   *timeseries.DatasetWrapper
	Read    file.ReadOptions
	Options timeseries.Options
}

// Load 取第一个可读取的附件, 失败时 Store 中原有数据集不变
func (d *DataLoader) Load(email *Email) (*timeseries.Dataset, error) {
	attachments := DataAttachments(email)
	if len(attachments) == 0 {
		return nil, fmt.Errorf("邮件 %q: %w", email.Subject, ErrNoAttachment)
	}
	att := attachments[0]

	rows, err := file.ReadBytes(att.Filename, att.Content, d.Read)
	if err != nil {
		return nil, fmt.Errorf("读取附件 %s 失败: %w", att.Filename, err)
	}
	ds, err := d.Store.Load(rows, d.Options, "mail:"+att.Filename)
	if err != nil {
		return nil, fmt.Errorf("导入附件 %s 失败: %w", att.Filename, err)
	}
	return ds, nil
}
