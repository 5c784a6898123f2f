package entity

import (
	"database/sql/driver"
	"time"
)

// 作业许可状态
const (
	PermitStatusDraft    = "draft"
	PermitStatusPending  = "pending"
	PermitStatusApproved = "approved"
)

// 作业许可类型
const (
	PermitTypeGeneral            = "general"
	PermitTypeConfinedSpace      = "confined-space"
	PermitTypeHazardousSpace     = "hazardous-space"
	PermitTypeHazardousChemicals = "hazardous-chemicals"
)

// 审批角色
const (
	ApproverRoleLocalEHS           = "Local EHS"
	ApproverRoleResponsibleManager = "Responsible Manager"
)

// 审批状态
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// Permit 作业许可(PtW)
type Permit struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	Date            string `json:"date" gorm:"size:20;not null"`
	Submitter       string `json:"submitter" gorm:"size:100;not null"`
	Manager         string `json:"manager" gorm:"size:100;not null"`
	Location        string `json:"location" gorm:"size:200;not null;default:''"`
	WorkType        string `json:"workType" gorm:"size:50;not null;default:''"` // Hot Work/Cold Work/Electrical/...
	PermitType      string `json:"permitType" gorm:"size:30;not null;default:'general'"`
	WorkDescription string `json:"workDescription" gorm:"type:text;not null;default:''"`
	Spq1            string `json:"spq1" gorm:"size:10;not null;default:'no'"`
	Spq2            string `json:"spq2" gorm:"size:10;not null;default:'no'"`
	Spq3            string `json:"spq3" gorm:"size:10;not null;default:'no'"`
	Spq4            string `json:"spq4" gorm:"size:10;not null;default:'no'"`
	Spq5            string `json:"spq5" gorm:"size:10;not null;default:'no'"`
	AuthorityName   string `json:"authorityName" gorm:"size:100;not null;default:''"`
	Status          string `json:"status" gorm:"size:20;not null;default:'draft';index"`

	// 受限空间
	O2Level         *string `json:"o2Level" gorm:"column:o2_level;size:20"`
	NitrogenPurge   *string `json:"nitrogenPurge" gorm:"size:20"`
	EntrySupervisor *string `json:"entrySupervisor" gorm:"size:100"`
	StandbyPerson   *string `json:"standbyPerson" gorm:"size:100"`

	// 危险空间
	HazardAssessment      *string `json:"hazardAssessment" gorm:"type:text"`
	RespiratoryProtection *string `json:"respiratoryProtection" gorm:"type:text"`
	IsolationMethods      *string `json:"isolationMethods" gorm:"type:text"`

	// 危险化学品
	ChemicalInventory *string `json:"chemicalInventory" gorm:"type:text"`
	SDSDocuments      *string `json:"sdsDocuments" gorm:"column:sds_documents;type:text"`
	PPERequirements   *string `json:"ppeRequirements" gorm:"column:ppe_requirements;type:text"`
	ContainmentPlan   *string `json:"containmentPlan" gorm:"type:text"`

	// SRB 疏散信息
	SRBRequired         *string `json:"srbRequired" gorm:"column:srb_required;size:10;default:'no'"`
	SRBPrimaryRoute     *string `json:"srbPrimaryRoute" gorm:"column:srb_primary_route;type:text"`
	SRBSecondaryRoute   *string `json:"srbSecondaryRoute" gorm:"column:srb_secondary_route;type:text"`
	SRBAssemblyPoint    *string `json:"srbAssemblyPoint" gorm:"column:srb_assembly_point;type:text"`
	SRBEmergencyContact *string `json:"srbEmergencyContact" gorm:"column:srb_emergency_contact;type:text"`

	// 基本信息
	RequestorPhone        *string `json:"requestorPhone" gorm:"size:50"`
	ServiceOrderNumber    *string `json:"serviceOrderNumber" gorm:"size:50"`
	ProcedureName         *string `json:"procedureName" gorm:"size:200"`
	CustomerFab           *string `json:"customerFab" gorm:"size:100"`
	MachineType           *string `json:"machineType" gorm:"size:50"`
	MachineNumber         *string `json:"machineNumber" gorm:"size:100"`
	CustomerNotified      *string `json:"customerNotified" gorm:"size:10"`
	CustomerContactName   *string `json:"customerContactName" gorm:"size:100"`
	CustomerContactPhone  *string `json:"customerContactPhone" gorm:"size:50"`
	ActivityDurationHours *string `json:"activityDurationHours" gorm:"size:20"`
	ExpectedStartDate     *string `json:"expectedStartDate" gorm:"size:20"`
	ExpectedStartTime     *string `json:"expectedStartTime" gorm:"size:20"`
	ExpectedEndDate       *string `json:"expectedEndDate" gorm:"size:20"`
	ExpectedEndTime       *string `json:"expectedEndTime" gorm:"size:20"`
	MultipleShifts        *string `json:"multipleShifts" gorm:"size:10"`

	// 受限空间人员
	Attendants             *string `json:"attendants" gorm:"type:text"`
	Entrants               *string `json:"entrants" gorm:"type:text"`
	AtmosphericTester      *string `json:"atmosphericTester" gorm:"size:100"`
	ExtractionPlanReviewed *string `json:"extractionPlanReviewed" gorm:"size:10"`
	ERTContactInfo         *string `json:"ertContactInfo" gorm:"column:ert_contact_info;type:text"`

	// 受限空间结构化数据
	SpaceIdentification  *SpaceIdentification `json:"spaceIdentification" gorm:"type:jsonb"`
	CommunicationMethod  *CommunicationMethod `json:"communicationMethod" gorm:"type:jsonb"`
	PhysicalHazards      PhysicalHazards      `json:"physicalHazards" gorm:"type:jsonb"`
	AtmosphericHazards   AtmosphericHazards   `json:"atmosphericHazards" gorm:"type:jsonb"`
	ToolsChecklist       ChecklistItems       `json:"toolsChecklist" gorm:"type:jsonb"`
	ExtractionSituations ApplicableItems      `json:"extractionSituations" gorm:"type:jsonb"`
	ExtractionMethods    SelectableItems      `json:"extractionMethods" gorm:"type:jsonb"`
	ExtractionEquipment  AvailableItems       `json:"extractionEquipment" gorm:"type:jsonb"`
	MedicalEquipment     AvailableItems       `json:"medicalEquipment" gorm:"type:jsonb"`
	EnhancedSignOff      *EnhancedSignOff     `json:"enhancedSignOff" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt"`
}

func (Permit) TableName() string {
	return "permits"
}

type SpaceIdentification struct {
	SourceVessel           bool   `json:"sourceVessel"`
	DriveLaserCompartments bool   `json:"driveLaserCompartments"`
	ScannerSourceArea      bool   `json:"scannerSourceArea"`
	AreaUnderSourceSBF     bool   `json:"areaUnderSourceSBF"`
	Other                  string `json:"other"`
}

func (v SpaceIdentification) Value() (driver.Value, error) { return jsonValue(v) }
func (v *SpaceIdentification) Scan(value interface{}) error {
	return scanJSON(value, v, "SpaceIdentification")
}

type CommunicationMethod struct {
	VerbalVisual     bool   `json:"verbalVisual"`
	Radio            bool   `json:"radio"`
	Other            bool   `json:"other"`
	OtherDescription string `json:"otherDescription"`
}

func (v CommunicationMethod) Value() (driver.Value, error) { return jsonValue(v) }
func (v *CommunicationMethod) Scan(value interface{}) error {
	return scanJSON(value, v, "CommunicationMethod")
}

type PhysicalHazard struct {
	ID             string `json:"id"`
	HazardLabel    string `json:"hazardLabel"`
	ControlLabel   string `json:"controlLabel"`
	HazardPresent  bool   `json:"hazardPresent"`
	ControlApplied bool   `json:"controlApplied"`
}

type PhysicalHazards []PhysicalHazard

func (v PhysicalHazards) Value() (driver.Value, error) { return jsonList(v, len(v)) }
func (v *PhysicalHazards) Scan(value interface{}) error {
	return scanJSON(value, v, "PhysicalHazards")
}

type AtmosphericHazard struct {
	ID              string `json:"id"`
	HazardLabel     string `json:"hazardLabel"`
	MonitorLabel    string `json:"monitorLabel"`
	HazardPresent   bool   `json:"hazardPresent"`
	MonitorDeployed bool   `json:"monitorDeployed"`
}

type AtmosphericHazards []AtmosphericHazard

func (v AtmosphericHazards) Value() (driver.Value, error) { return jsonList(v, len(v)) }
func (v *AtmosphericHazards) Scan(value interface{}) error {
	return scanJSON(value, v, "AtmosphericHazards")
}

type ChecklistItem struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

type ChecklistItems []ChecklistItem

func (v ChecklistItems) Value() (driver.Value, error) { return jsonList(v, len(v)) }
func (v *ChecklistItems) Scan(value interface{}) error {
	return scanJSON(value, v, "ChecklistItems")
}

type ApplicableItem struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Applicable bool   `json:"applicable"`
}

type ApplicableItems []ApplicableItem

func (v ApplicableItems) Value() (driver.Value, error) { return jsonList(v, len(v)) }
func (v *ApplicableItems) Scan(value interface{}) error {
	return scanJSON(value, v, "ApplicableItems")
}

type SelectableItem struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

type SelectableItems []SelectableItem

func (v SelectableItems) Value() (driver.Value, error) { return jsonList(v, len(v)) }
func (v *SelectableItems) Scan(value interface{}) error {
	return scanJSON(value, v, "SelectableItems")
}

type AvailableItem struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

type AvailableItems []AvailableItem

func (v AvailableItems) Value() (driver.Value, error) { return jsonList(v, len(v)) }
func (v *AvailableItems) Scan(value interface{}) error {
	return scanJSON(value, v, "AvailableItems")
}

type EnhancedSignOff struct {
	EHSSpecialistName      string `json:"ehsSpecialistName"`
	EHSSpecialistDate      string `json:"ehsSpecialistDate"`
	EHSSpecialistSignature string `json:"ehsSpecialistSignature"`
	ManagerName            string `json:"managerName"`
	ManagerDate            string `json:"managerDate"`
	ManagerSignature       string `json:"managerSignature"`
}

func (v EnhancedSignOff) Value() (driver.Value, error) { return jsonValue(v) }
func (v *EnhancedSignOff) Scan(value interface{}) error {
	return scanJSON(value, v, "EnhancedSignOff")
}

// jsonList nil 切片存 NULL
func jsonList(v interface{}, n int) (driver.Value, error) {
	if n == 0 {
		return nil, nil
	}
	return jsonValue(v)
}

// PermitApproval 作业许可审批
type PermitApproval struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	PermitID     uint       `json:"permitId" gorm:"not null;index"`
	ApproverRole string     `json:"approverRole" gorm:"size:50;not null"`
	ApproverName string     `json:"approverName" gorm:"size:100;not null"`
	Status       string     `json:"status" gorm:"size:20;not null;default:'pending'"`
	Comments     *string    `json:"comments" gorm:"type:text"`
	ApprovedAt   *time.Time `json:"approvedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (PermitApproval) TableName() string {
	return "permit_approvals"
}

// PermitSignOff 作业许可签字
type PermitSignOff struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	PermitID      uint      `json:"permitId" gorm:"not null;index"`
	Role          string    `json:"role" gorm:"size:50;not null"`
	SignedBy      string    `json:"signedBy" gorm:"size:100;not null"`
	SignatureData *string   `json:"signatureData" gorm:"type:text"` // base64 图片
	SignedAt      time.Time `json:"signedAt" gorm:"autoCreateTime"`
}

func (PermitSignOff) TableName() string {
	return "permit_sign_offs"
}

// GasMeasurement 气体检测记录，写入后不可修改
type GasMeasurement struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	PermitID       uint      `json:"permitId" gorm:"not null;index"`
	O2Level        string    `json:"o2Level" gorm:"column:o2_level;size:20;not null"`
	CO2Level       string    `json:"co2Level" gorm:"column:co2_level;size:20;not null"`
	COLevel        string    `json:"coLevel" gorm:"column:co_level;size:20;not null"`
	H2SLevel       string    `json:"h2sLevel" gorm:"column:h2s_level;size:20;not null;default:'0'"`
	LELLevel       string    `json:"lelLevel" gorm:"column:lel_level;size:20;not null;default:'0'"`
	MeasuredBy     string    `json:"measuredBy" gorm:"size:100;not null"`
	AlertTriggered string    `json:"alertTriggered" gorm:"size:10;not null;default:'no'"` // yes/no，服务端计算
	Notes          *string   `json:"notes" gorm:"type:text"`
	MeasuredAt     time.Time `json:"measuredAt" gorm:"autoCreateTime"`
}

func (GasMeasurement) TableName() string {
	return "permit_gas_measurements"
}
