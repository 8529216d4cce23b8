package model

import (
	"time"
)

// Run 一次设备提取记录
type Run struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Host           string    `json:"host" gorm:"type:varchar(128);not null;index"`
	Username       string    `json:"username" gorm:"type:varchar(64)"`
	Strategy       string    `json:"strategy" gorm:"type:varchar(16)"`
	Dialect        string    `json:"dialect" gorm:"type:varchar(32);index"`
	Status         string    `json:"status" gorm:"type:varchar(16);not null;index"`
	Stage          string    `json:"stage" gorm:"type:varchar(16)"` // 失败阶段，成功时为空
	ErrorMsg       string    `json:"error_msg" gorm:"type:text"`
	Commands       int       `json:"commands"`
	FailedCommands int       `json:"failed_commands"`
	Result         string    `json:"result" gorm:"type:text"` // 输出文档 JSON
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Duration       int64     `json:"duration"` // 执行时长，毫秒
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (Run) TableName() string {
	return "runs"
}

// RunStatus 执行状态枚举
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial" // 部分命令失败
	RunStatusFailed  = "failed"
)

// RunFilter 记录查询条件
type RunFilter struct {
	Host    string
	Dialect string
	Status  string
	Limit   int
	Offset  int
}
