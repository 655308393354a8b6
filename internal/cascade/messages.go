package cascade

// Messages holds the placeholder and notice texts shown by the page.
// Empty fields fall back to DefaultMessages.
type Messages struct {
	SpecialtyPlaceholder string
	ProviderPlaceholder  string
	TimePlaceholder      string
	Loading              string
	NoProviders          string
	NoSlots              string
	SpecialtiesFailed    string
	ProvidersFailed      string
	SlotsFailed          string
	InvalidDate          string
	PastDate             string
	SlotElapsed          string
}

// DefaultMessages returns the clinic's Spanish copy.
func DefaultMessages() Messages {
	return Messages{
		SpecialtyPlaceholder: "Selecciona una especialidad",
		ProviderPlaceholder:  "Selecciona un médico",
		TimePlaceholder:      "Selecciona una hora",
		Loading:              "Cargando...",
		NoProviders:          "No hay médicos para esta especialidad",
		NoSlots:              "No hay horas disponibles",
		SpecialtiesFailed:    "No se pudieron cargar las especialidades. Por favor, intenta de nuevo más tarde.",
		ProvidersFailed:      "No se pudieron cargar los médicos para esta especialidad. Por favor, intenta de nuevo.",
		SlotsFailed:          "No se pudieron cargar los horarios disponibles. Por favor, intenta de nuevo.",
		InvalidDate:          "La fecha seleccionada no es válida.",
		PastDate:             "No se puede reservar en una fecha pasada.",
		SlotElapsed:          "La hora seleccionada ya no está disponible.",
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.SpecialtyPlaceholder, d.SpecialtyPlaceholder)
	fill(&m.ProviderPlaceholder, d.ProviderPlaceholder)
	fill(&m.TimePlaceholder, d.TimePlaceholder)
	fill(&m.Loading, d.Loading)
	fill(&m.NoProviders, d.NoProviders)
	fill(&m.NoSlots, d.NoSlots)
	fill(&m.SpecialtiesFailed, d.SpecialtiesFailed)
	fill(&m.ProvidersFailed, d.ProvidersFailed)
	fill(&m.SlotsFailed, d.SlotsFailed)
	fill(&m.InvalidDate, d.InvalidDate)
	fill(&m.PastDate, d.PastDate)
	fill(&m.SlotElapsed, d.SlotElapsed)
	return m
}
