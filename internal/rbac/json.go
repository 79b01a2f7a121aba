package rbac

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedIdentity is returned when an identity document lacks both id and email.
var ErrMalformedIdentity = errors.New("rbac: malformed identity")

type identityWire struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Nombre  string       `json:"nombre,omitempty"`
	Email   string       `json:"email"`
	Rol     string       `json:"rol"`
	Centros []centerWire `json:"centros"`
}

type centerWire struct {
	CentroID    int64  `json:"centroId"`
	RolEnCentro string `json:"rolEnCentro,omitempty"`
}

// MarshalJSON writes the persisted identity layout.
func (i Identity) MarshalJSON() ([]byte, error) {
	w := identityWire{
		ID:      i.ID,
		Name:    i.DisplayName,
		Email:   i.Email,
		Rol:     string(i.GlobalRole),
		Centros: make([]centerWire, 0, len(i.Centers)),
	}
	if w.Rol == "" {
		w.Rol = string(RoleStandard)
	}
	for _, m := range i.Centers {
		w.Centros = append(w.Centros, centerWire{CentroID: m.CenterID, RolEnCentro: string(m.Role)})
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts both the persisted layout and the API response,
// which may spell the display name "nombre" and omit center roles.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var w identityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == 0 && strings.TrimSpace(w.Email) == "" {
		return ErrMalformedIdentity
	}
	name := w.Name
	if name == "" {
		name = w.Nombre
	}
	// Older backends list coordinator centers without a per-center role.
	var inherited CenterRole
	if strings.EqualFold(strings.TrimSpace(w.Rol), legacyCoordinator) {
		inherited = CenterCoordinator
	}
	centers := make([]CenterMembership, 0, len(w.Centros))
	for _, c := range w.Centros {
		role, ok := ParseCenterRole(c.RolEnCentro)
		if !ok && c.RolEnCentro == "" {
			role = inherited
		}
		centers = append(centers, CenterMembership{CenterID: c.CentroID, Role: role})
	}
	*i = *NewIdentity(w.ID, name, w.Email, ParseGlobalRole(w.Rol), centers...)
	return nil
}
