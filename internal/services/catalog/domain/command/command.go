// Package command defines catalog commands and the static table mapping each
// command to the event it produces.
package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type identifies a command.
type Type string

const (
	TypeCreateEntity             Type = "CreateEntity"
	TypeUpdateEntity             Type = "UpdateEntity"
	TypeDeleteEntity             Type = "DeleteEntity"
	TypeAddEntityRelation        Type = "AddEntityRelation"
	TypeRemoveEntityRelation     Type = "RemoveEntityRelation"
	TypeCreateClip               Type = "CreateClip"
	TypeUpdateClip               Type = "UpdateClip"
	TypeDeleteClip               Type = "DeleteClip"
	TypeSetClipFavoriteStatus    Type = "SetClipFavoriteStatus"
	TypeCreateAnnotation         Type = "CreateAnnotation"
	TypeUpdateAnnotation         Type = "UpdateAnnotation"
	TypeDeleteAnnotation         Type = "DeleteAnnotation"
	TypeCreateElement            Type = "CreateElement"
	TypeUpdateElement            Type = "UpdateElement"
	TypeDeleteElement            Type = "DeleteElement"
	TypeCreateLayer              Type = "CreateLayer"
	TypeUpdateLayer              Type = "UpdateLayer"
	TypeDeleteLayer              Type = "DeleteLayer"
	TypeCreateSegment            Type = "CreateSegment"
	TypeUpdateSegment            Type = "UpdateSegment"
	TypeDeleteSegment            Type = "DeleteSegment"
	TypeUpdateSegmentAnnotations Type = "UpdateSegmentAnnotations"
	TypeRenameMergeEntity        Type = "RenameMergeEntity"
	TypeRenameRelation           Type = "RenameRelation"
	TypeAddField                 Type = "AddField"
	TypeSetFieldValue            Type = "SetFieldValue"
	TypeLoadSnapshot             Type = "LoadSnapshot"
	TypeSetAnalysisCats          Type = "SetAnalysisCatsAttributes"
)

// Command is a requested mutation. It is never persisted.
type Command struct {
	Type    Type
	ActorID string
	Payload json.RawMessage
}

// Privilege is an actor's catalog access level; levels are ordered.
type Privilege int

const (
	PrivilegeRead Privilege = iota
	PrivilegeWrite
	PrivilegeAdmin
)

// ParsePrivilege reads the single-letter form: r, w or a.
func ParsePrivilege(value string) (Privilege, error) {
	switch strings.TrimSpace(value) {
	case "r":
		return PrivilegeRead, nil
	case "w":
		return PrivilegeWrite, nil
	case "a":
		return PrivilegeAdmin, nil
	default:
		return PrivilegeRead, fmt.Errorf("unknown privilege %q", value)
	}
}

func (p Privilege) String() string {
	switch p {
	case PrivilegeRead:
		return "r"
	case PrivilegeWrite:
		return "w"
	case PrivilegeAdmin:
		return "a"
	default:
		return fmt.Sprintf("Privilege(%d)", int(p))
	}
}
