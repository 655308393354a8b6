// Package demo serves a seeded clinic backend so the form host can run end
// to end without the real catalog service.
package demo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/booking-cascade/internal/schedule"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

type specialty struct {
	ID     int    `json:"id"`
	Nombre string `json:"nombre"`
}

type doctor struct {
	ID           int       `json:"id"`
	Nombre       string    `json:"nombre"`
	Apellido     string    `json:"apellido"`
	Especialidad specialty `json:"especialidad"`
}

type slot struct {
	Hora       string `json:"hora"`
	Disponible bool   `json:"disponible"`
}

// Booking is an appointment accepted by the demo backend.
type Booking struct {
	DoctorID  int    `json:"idMedico"`
	Date      string `json:"fechaCita"`
	Time      string `json:"horaCita"`
	PatientID string `json:"idPaciente,omitempty"`
}

var seedSpecialties = []string{
	"Cardiologia", "Dermatologia", "Pediatria", "Ginecologia", "Neurologia",
	"Traumatologia", "Oftalmologia", "Otorrinolaringologia", "Urologia",
	"Endocrinologia", "Gastroenterologia", "Oncologia", "Psicologia",
	"Odontologia", "Medicina Interna",
}

// Three doctors per specialty, in specialty order.
var seedDoctors = []string{
	"Juan Perez", "Maria Lopez", "Carlos Sanchez",
	"Ana Torres", "Ricardo Gomez", "Laura Castillo",
	"Luis Morales", "Cecilia Ramirez", "Ernesto Vega",
	"Patricia Herrera", "Miguel Silva", "Andrea Mendoza",
	"Fernando Ruiz", "Veronica Aguilar", "Nicolas Rivas",
	"Sonia Navarro", "Diego Salazar", "Alfredo Guzman",
	"Clara Ortega", "Tomas Caceres", "Rebeca Lozano",
	"Ivan Herrera", "Elsa Fernandez", "Pablo Leon",
	"Marta Reyes", "Alejandro Bustamante", "Javier Andrade",
	"Andres Paredes", "Paola Mendez", "German Palacios",
	"Lorena Ibañez", "Marcelo Castro", "Karina Soto",
	"Sergio Medina", "Teresa Alarcon", "Hugo Cespedes",
	"Daniela Pinto", "Esteban Vargas", "Camila Ponce",
	"Mauricio Bravo", "Beatriz Molina", "Hugo Ramirez",
	"Felipe Aguilar", "Gabriela Caceres", "Vicente Romero",
}

// DailyHours are the slots every doctor offers each day.
var DailyHours = []string{"09:00", "11:00", "15:00"}

const firstDoctorID = 101

// Catalog is an in-memory clinic: specialties, doctors, daily slots and the
// bookings taken against them.
type Catalog struct {
	specialties []specialty
	doctors     []doctor
	logger      *logging.Logger

	mu       sync.Mutex
	bookings []Booking
	taken    map[string]bool
}

// NewCatalog returns a catalog seeded with fifteen specialties and three
// doctors each.
func NewCatalog(logger *logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Catalog{logger: logger.Component("demo"), taken: make(map[string]bool)}
	for i, name := range seedSpecialties {
		c.specialties = append(c.specialties, specialty{ID: i + 1, Nombre: name})
	}
	for i, full := range seedDoctors {
		nombre, apellido := splitName(full)
		c.doctors = append(c.doctors, doctor{
			ID:           firstDoctorID + i,
			Nombre:       nombre,
			Apellido:     apellido,
			Especialidad: c.specialties[i/3],
		})
	}
	return c
}

// splitName puts everything but the last word in the first name.
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	idx := strings.LastIndex(full, " ")
	if idx < 0 {
		return full, ""
	}
	return full[:idx], full[idx+1:]
}

// Routes exposes the clinic backend endpoints.
func (c *Catalog) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/api/especialidades", c.handleSpecialties)
	r.Get("/api/medicos-por-especialidad", c.handleDoctorsBySpecialty)
	r.Get("/api/medicos", c.handleDoctors)
	r.Get("/api/horarios-disponibles", c.handleSlots)
	r.Post("/reserva/confirmar", c.handleConfirm)
	r.Get("/historial", c.handleHistory)
	return r
}

func (c *Catalog) handleSpecialties(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.specialties)
}

func (c *Catalog) handleDoctors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.doctors)
}

func (c *Catalog) handleDoctorsBySpecialty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("idEspecialidad"))
	if err != nil {
		http.Error(w, "idEspecialidad must be numeric", http.StatusBadRequest)
		return
	}
	out := make([]doctor, 0, 3)
	for _, d := range c.doctors {
		if d.Especialidad.ID == id {
			out = append(out, d)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *Catalog) handleSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.Atoi(r.URL.Query().Get("idMedico"))
	if err != nil || !c.hasDoctor(doctorID) {
		http.Error(w, "unknown idMedico", http.StatusBadRequest)
		return
	}
	date, err := schedule.ParseDate(r.URL.Query().Get("fechaCita"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	out := make([]slot, 0, len(DailyHours))
	for _, h := range DailyHours {
		out = append(out, slot{Hora: h, Disponible: !c.taken[slotKey(doctorID, date.String(), h)]})
	}
	c.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (c *Catalog) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	doctorID, err := strconv.Atoi(r.PostForm.Get("idMedico"))
	if err != nil || !c.hasDoctor(doctorID) {
		http.Error(w, "unknown idMedico", http.StatusBadRequest)
		return
	}
	date, err := schedule.ParseDate(r.PostForm.Get("fechaCita"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tod, err := schedule.ParseTimeOfDay(r.PostForm.Get("horaCita"))
	if err != nil || !offered(tod.String()) {
		http.Error(w, "horaCita is not an offered slot", http.StatusBadRequest)
		return
	}

	key := slotKey(doctorID, date.String(), tod.String())
	c.mu.Lock()
	if c.taken[key] {
		c.mu.Unlock()
		http.Error(w, "El horario seleccionado ya no está disponible.", http.StatusConflict)
		return
	}
	c.taken[key] = true
	c.bookings = append(c.bookings, Booking{
		DoctorID:  doctorID,
		Date:      date.String(),
		Time:      tod.String(),
		PatientID: r.PostForm.Get("idPaciente"),
	})
	c.mu.Unlock()

	c.logger.Info("demo booking accepted", "doctor_id", doctorID, "date", date.String(), "time", tod.String())
	prefix := strings.TrimSuffix(r.URL.Path, "/reserva/confirmar")
	http.Redirect(w, r, prefix+"/historial?success", http.StatusSeeOther)
}

func (c *Catalog) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Bookings())
}

// Bookings returns the accepted bookings ordered by date and time.
func (c *Catalog) Bookings() []Booking {
	c.mu.Lock()
	out := append([]Booking(nil), c.bookings...)
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

func (c *Catalog) hasDoctor(id int) bool {
	return id >= firstDoctorID && id < firstDoctorID+len(c.doctors)
}

func offered(hhmm string) bool {
	for _, h := range DailyHours {
		if h == hhmm {
			return true
		}
	}
	return false
}

func slotKey(doctorID int, date, hhmm string) string {
	return fmt.Sprintf("%d|%s|%s", doctorID, date, hhmm)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
