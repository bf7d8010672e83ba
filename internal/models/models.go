package models

import "time"

type Role string

const (
	RoleEmployee   Role = "EMPLOYEE"
	RoleTechnician Role = "TECHNICIAN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAdmin      Role = "ADMIN"
)

// roleRank orders roles for "at least X" checks. Route gates themselves
// use exact membership lists; the rank only backs the convenience wrappers.
var roleRank = map[Role]int{
	RoleEmployee:   0,
	RoleTechnician: 1,
	RoleSupervisor: 2,
	RoleAdmin:      3,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusWaitingParts    Status = "WAITING_PARTS"
	StatusWaitingExternal Status = "WAITING_EXTERNAL"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusWaitingParts,
		StatusWaitingExternal, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FirstName    string    `gorm:"not null" json:"firstName"`
	LastName     string    `gorm:"not null" json:"lastName"`
	EmployeeID   *string   `gorm:"uniqueIndex" json:"employeeId,omitempty"`
	Role         Role      `gorm:"not null;default:EMPLOYEE" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Asset struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	AssetCode       string     `gorm:"uniqueIndex;not null" json:"assetCode"`
	Name            string     `gorm:"not null" json:"name"`
	Description     *string    `json:"description,omitempty"`
	Model           *string    `json:"model,omitempty"`
	Manufacturer    *string    `json:"manufacturer,omitempty"`
	SerialNumber    *string    `json:"serialNumber,omitempty"`
	Location        string     `gorm:"not null;index" json:"location"`
	InstallDate     *time.Time `json:"installDate,omitempty"`
	IsActive        bool       `gorm:"not null;default:true" json:"isActive"`
	OwnerID         *string    `gorm:"type:uuid" json:"ownerId,omitempty"`
	AdministratorID *string    `gorm:"type:uuid" json:"administratorId,omitempty"`
	Owner           *User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Administrator   *User      `gorm:"foreignKey:AdministratorID" json:"administrator,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type WorkOrder struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string     `gorm:"not null" json:"title"`
	Description  *string    `json:"description,omitempty"`
	Category     string     `gorm:"not null" json:"category"`
	Reason       string     `gorm:"not null" json:"reason"`
	Location     string     `gorm:"not null" json:"location"`
	Priority     Priority   `gorm:"not null;default:MEDIUM;index" json:"priority"`
	Status       Status     `gorm:"not null;default:PENDING;index" json:"status"`
	ReportedAt   time.Time  `gorm:"not null" json:"reportedAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Solution     *string    `json:"solution,omitempty"`
	FaultCode    *string    `json:"faultCode,omitempty"`
	Attachments  StringList `gorm:"type:text" json:"attachments"`
	AssetID      string     `gorm:"type:uuid;not null;index" json:"assetId"`
	CreatedByID  string     `gorm:"type:uuid;not null;index" json:"createdById"`
	AssignedToID *string    `gorm:"type:uuid;index" json:"assignedToId,omitempty"`
	Asset        *Asset     `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	CreatedBy    *User      `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
	AssignedTo   *User      `gorm:"foreignKey:AssignedToID" json:"assignedTo,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// WorkOrderStatusHistory rows are append-only; nothing in the service
// updates or deletes them.
type WorkOrderStatusHistory struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	WorkOrderID string    `gorm:"type:uuid;not null;index" json:"workOrderId"`
	FromStatus  *Status   `json:"fromStatus,omitempty"`
	ToStatus    Status    `gorm:"not null" json:"toStatus"`
	ChangedByID string    `gorm:"type:uuid;not null" json:"changedById"`
	Notes       *string   `json:"notes,omitempty"`
	ChangedBy   *User     `gorm:"foreignKey:ChangedByID" json:"changedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (WorkOrderStatusHistory) TableName() string { return "work_order_status_history" }
