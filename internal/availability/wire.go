package availability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/booking-cascade/internal/schedule"
)

// flexString accepts a JSON string or number; backends disagree on id types.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

type wireSpecialty struct {
	ID     flexString `json:"id"`
	Name   string     `json:"name"`
	Nombre string     `json:"nombre"`
}

func (w wireSpecialty) toSpecialty() (Specialty, bool) {
	name := firstNonEmpty(w.Name, w.Nombre)
	if w.ID == "" || name == "" {
		return Specialty{}, false
	}
	return Specialty{ID: string(w.ID), Name: name}, true
}

type wireProvider struct {
	ID             flexString     `json:"id"`
	FullName       string         `json:"fullName"`
	Name           string         `json:"name"`
	Nombre         string         `json:"nombre"`
	Apellido       string         `json:"apellido"`
	SpecialtyID    flexString     `json:"specialtyId"`
	IDEspecialidad flexString     `json:"idEspecialidad"`
	Especialidad   *wireSpecialty `json:"especialidad"`
	Specialty      *wireSpecialty `json:"specialty"`
}

func (w wireProvider) toProvider() (Provider, bool) {
	if w.ID == "" {
		return Provider{}, false
	}
	name := strings.TrimSpace(w.FullName)
	if name == "" {
		name = strings.TrimSpace(strings.Join([]string{firstNonEmpty(w.Nombre, w.Name), strings.TrimSpace(w.Apellido)}, " "))
	}
	if name == "" {
		return Provider{}, false
	}
	specialty := firstNonEmpty(string(w.SpecialtyID), string(w.IDEspecialidad))
	if specialty == "" && w.Especialidad != nil {
		specialty = string(w.Especialidad.ID)
	}
	if specialty == "" && w.Specialty != nil {
		specialty = string(w.Specialty.ID)
	}
	return Provider{ID: string(w.ID), FullName: name, SpecialtyID: specialty}, true
}

type wireSlot struct {
	Time       string `json:"time"`
	Hora       string `json:"hora"`
	Available  *bool  `json:"available"`
	Disponible *bool  `json:"disponible"`
}

func (w wireSlot) toSlot(mode SlotMode) (schedule.Slot, error) {
	tod, err := schedule.ParseTimeOfDay(firstNonEmpty(w.Time, w.Hora))
	if err != nil {
		return schedule.Slot{}, err
	}
	flag := w.Available
	if flag == nil {
		flag = w.Disponible
	}

	available := true
	switch mode {
	case SlotModePrefiltered:
	case SlotModeStrict:
		available = flag != nil && *flag
	default:
		if flag != nil {
			available = *flag
		}
	}
	return schedule.Slot{Time: tod, Available: available}, nil
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under "data" or under key.
func decodeList[T any](body []byte, key string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	for _, k := range []string{key, "data"} {
		raw, ok := wrapped[k]
		if !ok {
			continue
		}
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return nil, fmt.Errorf("no %q or \"data\" list in response", key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
