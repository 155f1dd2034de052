package pharmacy

// =============================================================================
// PRESCRIPTION - Header plus ordered line items, PENDING -> FILLED
// =============================================================================

type Status string

const (
	StatusPending Status = "pending"
	StatusFilled  Status = "filled"
)

// Item references a medicine by id. The reference is weak: the medicine may
// be deleted while the prescription is pending.
type Item struct {
	MedicineID int
	Quantity   int
}

func NewItem(medicineID, quantity int) (Item, error) {
	if quantity <= 0 {
		return Item{}, invalid("quantity", "must be positive")
	}
	return Item{MedicineID: medicineID, Quantity: quantity}, nil
}

// Prescription is mutable while pending. Filled is terminal; only the
// Ledger flips it, after every item has been stock-checked and deducted.
type Prescription struct {
	ID          int
	PatientName string
	DoctorName  string
	Date        Date
	Items       []Item
	Filled      bool
}

// NewPrescription validates the header. Items are added with AddItem.
func NewPrescription(patient, doctor string, date Date) (Prescription, error) {
	var p Prescription
	if err := p.SetPatientName(patient); err != nil {
		return Prescription{}, err
	}
	if err := p.SetDoctorName(doctor); err != nil {
		return Prescription{}, err
	}
	if err := p.SetDate(date); err != nil {
		return Prescription{}, err
	}
	return p, nil
}

// AddItem appends a line item. Medicine existence and stock are checked at
// fulfillment time, since stock can change between authoring and filling.
func (p *Prescription) AddItem(medicineID, quantity int) error {
	item, err := NewItem(medicineID, quantity)
	if err != nil {
		return err
	}
	p.Items = append(p.Items, item)
	return nil
}

func (p *Prescription) SetPatientName(name string) error {
	if name == "" {
		return invalid("patient_name", "is required")
	}
	p.PatientName = name
	return nil
}

func (p *Prescription) SetDoctorName(name string) error {
	if name == "" {
		return invalid("doctor_name", "is required")
	}
	p.DoctorName = name
	return nil
}

func (p *Prescription) SetDate(date Date) error {
	if date.IsZero() {
		return invalid("date", "is required")
	}
	p.Date = date
	return nil
}

func (p *Prescription) markFilled() { p.Filled = true }

func (p Prescription) Status() Status {
	if p.Filled {
		return StatusFilled
	}
	return StatusPending
}

// clone copies the item slice so callers never share it with the Ledger.
func (p Prescription) clone() Prescription {
	p.Items = append([]Item(nil), p.Items...)
	return p
}

func (p Prescription) validate() error {
	if _, err := NewPrescription(p.PatientName, p.DoctorName, p.Date); err != nil {
		return err
	}
	for _, item := range p.Items {
		if _, err := NewItem(item.MedicineID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// PrescriptionInput is a complete new prescription; all of it is validated
// before anything is inserted.
type PrescriptionInput struct {
	PatientName string
	DoctorName  string
	Date        Date
	Items       []Item
}

// PrescriptionPatch updates header fields of a pending prescription.
type PrescriptionPatch struct {
	PatientName *string
	DoctorName  *string
	Date        *Date
}

func (p PrescriptionPatch) applyTo(rx Prescription) (Prescription, error) {
	if p.PatientName != nil {
		if err := rx.SetPatientName(*p.PatientName); err != nil {
			return Prescription{}, err
		}
	}
	if p.DoctorName != nil {
		if err := rx.SetDoctorName(*p.DoctorName); err != nil {
			return Prescription{}, err
		}
	}
	if p.Date != nil {
		if err := rx.SetDate(*p.Date); err != nil {
			return Prescription{}, err
		}
	}
	return rx, nil
}
