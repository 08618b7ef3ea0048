package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// 存储层错误分类
var (
	// ErrNotFound 目标记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 唯一约束冲突
	ErrDuplicate = errors.New("unique constraint conflict")
	// ErrConstraint CHECK / NOT NULL 等其他约束失败
	ErrConstraint = errors.New("constraint violation")
	// ErrUnavailable 磁盘 IO 失败或锁等待超时，由调用方决定是否重试
	ErrUnavailable = errors.New("storage unavailable")
)

// classifyError 将 gorm / sqlite 错误映射到存储层错误分类
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %v", ErrConstraint, err)
		}
		switch serr.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %v", ErrConstraint, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrCantOpen:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	// 未识别的存储错误一律按不可用处理
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
