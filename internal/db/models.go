package db

// TaskRecord stores one command invocation. Seq is the autoincrement source
// for task ids and is never reused by SQLite.
type TaskRecord struct {
	Seq            int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	TaskID         string `gorm:"column:task_id;not null;uniqueIndex"`
	Command        string `gorm:"column:command;not null;default:''"`
	ParametersJSON string `gorm:"column:parameters_json;not null;default:'{}'"`
	Status         string `gorm:"column:status;not null;default:'pending';index"`
	ResultJSON     string `gorm:"column:result_json;not null;default:''"`
	CreatedAt      int64  `gorm:"column:created_at;not null;default:0"`
	StartedAt      int64  `gorm:"column:started_at;not null;default:0"`
	FinishedAt     int64  `gorm:"column:finished_at;not null;default:0"`
}

func (TaskRecord) TableName() string { return "tasks" }

type CommandUsage struct {
	Command     string `gorm:"column:command;primaryKey"`
	Total       int64  `gorm:"column:total;not null;default:0"`
	Succeeded   int64  `gorm:"column:succeeded;not null;default:0"`
	Failed      int64  `gorm:"column:failed;not null;default:0"`
	FirstUsedAt int64  `gorm:"column:first_used_at;not null;default:0"`
	LastUsedAt  int64  `gorm:"column:last_used_at;not null;default:0"`
}

func (CommandUsage) TableName() string { return "command_usage" }
