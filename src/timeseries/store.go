// store.go
package timeseries

import (
	"sync"
	"time"
)

// DatasetWrapper 持有当前生效的数据集并提供线程安全访问
// 每次导入成功整体替换, 失败时保留原数据集
type DatasetWrapper struct {
	ds *Dataset
	mu sync.RWMutex
}

// GetDataset 获取当前数据集快照(线程安全), 尚未导入时返回空数据集
func (w *DatasetWrapper) GetDataset() *Dataset {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.ds == nil {
		return Empty()
	}
	return w.ds
}

// SetDataset 替换当前数据集(线程安全)
func (w *DatasetWrapper) SetDataset(ds *Dataset) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ds = ds
}

// Load 解析原始表格并替换当前数据集
// 参数:
//
//	rows: 已解码的原始行
//	opts: 解析选项
//	source: 数据来源(文件路径或邮件附件名)
//
// 返回值:
//
//	*Dataset: 新数据集, 失败时为 nil
//	error: 表格结构错误, 此时当前数据集保持不变
func (w *DatasetWrapper) Load(rows [][]string, opts Options, source string) (*Dataset, error) {
	ds, err := Build(rows, opts)
	if err != nil {
		return nil, err
	}
	ds.source = source
	ds.loadedAt = time.Now()

	w.SetDataset(ds)
	return ds, nil
}
