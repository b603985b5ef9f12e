package cml

import "time"

// Job — job в CML workspace, как его возвращает API.
type Job struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Script      string            `json:"script"`
	Kernel      string            `json:"kernel"`
	CPU         float64           `json:"cpu"`
	Memory      float64           `json:"memory"`
	NvidiaGPU   int               `json:"nvidia_gpu"`
	Timeout     int               `json:"timeout"`
	Arguments   string            `json:"arguments,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Attachments []string          `json:"attachments,omitempty"`
	Schedule    string            `json:"schedule,omitempty"`
	ParentJobID string            `json:"parent_job_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// CreateJobRequest — тело запроса на создание job'а.
//
// schedule и parent_job_id взаимоисключимы: API отклоняет запрос,
// где заданы оба.
type CreateJobRequest struct {
	Name        string            `json:"name"`
	Script      string            `json:"script"`
	Kernel      string            `json:"kernel"`
	CPU         float64           `json:"cpu"`
	Memory      float64           `json:"memory"`
	NvidiaGPU   int               `json:"nvidia_gpu,omitempty"`
	Timeout     int               `json:"timeout"`
	Arguments   string            `json:"arguments,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Attachments []string          `json:"attachments,omitempty"`
	Schedule    string            `json:"schedule,omitempty"`
	ParentJobID string            `json:"parent_job_id,omitempty"`
}

// UpdateJobRequest — тело запроса на частичное обновление job'а.
// nil-поля не трогаются.
type UpdateJobRequest struct {
	Name        *string            `json:"name,omitempty"`
	Script      *string            `json:"script,omitempty"`
	Kernel      *string            `json:"kernel,omitempty"`
	CPU         *float64           `json:"cpu,omitempty"`
	Memory      *float64           `json:"memory,omitempty"`
	NvidiaGPU   *int               `json:"nvidia_gpu,omitempty"`
	Timeout     *int               `json:"timeout,omitempty"`
	Arguments   *string            `json:"arguments,omitempty"`
	Environment *map[string]string `json:"environment,omitempty"`
	Attachments *[]string          `json:"attachments,omitempty"`
	Schedule    *string            `json:"schedule,omitempty"`
	ParentJobID *string            `json:"parent_job_id,omitempty"`
}

// JobRun — запуск job'а в workspace.
type JobRun struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// listJobsResponse — страница списка jobs.
type listJobsResponse struct {
	Jobs          []Job  `json:"jobs"`
	NextPageToken string `json:"next_page_token,omitempty"`
}
