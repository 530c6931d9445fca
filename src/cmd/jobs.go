package cmd

import (
	"sync"

	"github.com/robfig/cron"
)

// cronJobs 记录正在执行的定时任务, stop 之后不再开始新的任务
type cronJobs struct {
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func (j *cronJobs) wrap(fn func()) func() {
	return func() {
		j.mu.Lock()
		if j.stopped {
			j.mu.Unlock()
			return
		}
		j.wg.Add(1)
		j.mu.Unlock()
		defer j.wg.Done()
		fn()
	}
}

// stop 停止调度并等待正在执行的任务结束
func (j *cronJobs) stop(c *cron.Cron) {
	c.Stop()
	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()
	j.wg.Wait()
}
