package models

import "time"

// Audit action labels.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionRegister       = "REGISTRO"
	AuditActionProfileUpdate  = "ACTUALIZAR_PERFIL"
	AuditActionPasswordChange = "CAMBIAR_PASSWORD"
	AuditActionProjectCreate  = "CREAR_PROYECTO"
	AuditActionProjectUpdate  = "ACTUALIZAR_PROYECTO"
	AuditActionMemberAdd      = "ASIGNAR_USUARIO_PROYECTO"
	AuditActionTaskCreate     = "CREAR_TAREA"
	AuditActionTaskMove       = "MOVER_TAREA"
	AuditActionMilestone      = "CREAR_HITO"
	AuditActionPlanUpload     = "SUBIR_PLANO"
)

// Tables referenced by audit entries.
const (
	TableUsers        = "usuarios"
	TableProjects     = "proyectos"
	TableProjectUsers = "proyecto_usuarios"
	TableTasks        = "tareas"
	TableMilestones   = "hitos"
	TablePlans        = "planos_bim"
)

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID          int64     `db:"id" json:"id"`
	UserID      *int64    `db:"usuario_id" json:"usuario_id,omitempty"`
	Action      string    `db:"accion" json:"accion"`
	Description string    `db:"descripcion" json:"descripcion"`
	Table       string    `db:"tabla_afectada" json:"tabla_afectada"`
	RecordID    *int64    `db:"registro_id" json:"registro_id,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ip_address"`
	CreatedAt   time.Time `db:"fecha" json:"fecha"`
}

// AuditFilter constrains audit listings.
type AuditFilter struct {
	UserID *int64
	Table  string
	Action string
	Page   Pagination
}
