package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BimPlan is one stored version of a named plan. Rows sharing name and
// project form its version history.
type BimPlan struct {
	ID         int64     `db:"id" json:"id"`
	ProjectID  int64     `db:"proyecto_id" json:"proyecto_id"`
	Name       string    `db:"nombre" json:"nombre"`
	Version    string    `db:"version" json:"version"`
	FileRef    string    `db:"archivo" json:"-"`
	Type       string    `db:"tipo" json:"tipo"`
	UploaderID int64     `db:"subido_por" json:"subido_por"`
	Deleted    bool      `db:"eliminado" json:"-"`
	CreatedAt  time.Time `db:"fecha_subida" json:"fecha_subida"`
	Current    bool      `db:"-" json:"actual"`
}

// PlanVersion is a parsed "major.minor" version.
type PlanVersion struct {
	Major int
	Minor int
}

// FirstPlanVersion is assigned to the first upload of a plan name.
var FirstPlanVersion = PlanVersion{Major: 1, Minor: 0}

// ParsePlanVersion parses "major.minor"; a bare "major" means minor 0.
func ParsePlanVersion(raw string) (PlanVersion, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) == 0 || len(parts) > 2 {
		return PlanVersion{}, fmt.Errorf("invalid plan version %q", raw)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return PlanVersion{}, fmt.Errorf("invalid plan version %q", raw)
	}
	v := PlanVersion{Major: major}
	if len(parts) == 2 {
		minor, err := strconv.Atoi(parts[1])
		if err != nil || minor < 0 {
			return PlanVersion{}, fmt.Errorf("invalid plan version %q", raw)
		}
		v.Minor = minor
	}
	return v, nil
}

// Next bumps the major (resetting minor) or the minor component.
func (v PlanVersion) Next(major bool) PlanVersion {
	if major {
		return PlanVersion{Major: v.Major + 1}
	}
	return PlanVersion{Major: v.Major, Minor: v.Minor + 1}
}

// Less orders versions numerically, so 1.10 sorts after 1.9.
func (v PlanVersion) Less(o PlanVersion) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

func (v PlanVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
