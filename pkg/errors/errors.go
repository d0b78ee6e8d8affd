package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockNotAcquired 单写者锁被其他请求持有，超时未获取
var ErrLockNotAcquired = errors.New("资源正被其他请求处理，请稍后重试")
