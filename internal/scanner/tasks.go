package scanner

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskTenantScan = "automation.scan.tenant"

type TenantScanPayload struct {
	SchoolID string `json:"schoolId"`
}

func NewTenantScanTask(payload TenantScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTenantScan, data), nil
}

func ParseTenantScanPayload(task *asynq.Task) (TenantScanPayload, error) {
	var payload TenantScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TenantScanPayload{}, err
	}
	return payload, nil
}
