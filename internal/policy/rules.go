package policy

// Denial messages returned to clients.
const (
	MsgAdminsOnly   = "Admins only"
	MsgDoctorsOnly  = "Doctors only"
	MsgPatientsOnly = "Patients only"

	MsgDoctorProfileMissing  = "Doctor profile not found for this user"
	MsgPatientProfileMissing = "Patient profile not found for this user"

	MsgOtherPatientData = "You cannot access another patient's data"
	MsgOwnDoctorProfile = "You can only update your own doctor profile"

	MsgApptDoctorCreate  = "Doctors can only create appointments for themselves"
	MsgApptPatientCreate = "Patients can only create appointments for themselves"
	MsgApptAccess        = "You can only access your own appointments"
	MsgApptUpdateOwn     = "You can only update your own appointments"
	MsgApptUpdateRole    = "Only admin or doctors can update appointments"
	MsgApptCancel        = "You can only cancel your own appointments"
	MsgApptDelete        = "Only admin can delete appointments"

	MsgHistDoctorCreate  = "Doctors can only create histories for themselves as doctor"
	MsgHistCreateRole    = "Only admin or doctors can create clinical histories"
	MsgHistDoctorAccess  = "You can only access histories where you are the doctor"
	MsgHistPatientAccess = "You can only access your own clinical histories"
	MsgHistPatientList   = "You can only see your own clinical histories"
	MsgHistDoctorUpdate  = "You can only update histories where you are the doctor"
	MsgHistUpdateRole    = "Only admin or doctors can update clinical histories"
	MsgHistDelete        = "Only admin can delete clinical histories"
)

func allowAll(Caller, Target) Decision { return allow(Scope{}) }

// ownDoctor allows a doctor acting on a record whose doctor_id is their own.
func ownDoctor(reason string) Rule {
	return func(c Caller, t Target) Decision {
		if c.OwnsDoctor(t.DoctorID) {
			return allow(Scope{})
		}
		return deny(reason)
	}
}

func ownPatient(reason string) Rule {
	return func(c Caller, t Target) Decision {
		if c.OwnsPatient(t.PatientID) {
			return allow(Scope{})
		}
		return deny(reason)
	}
}

func ownUser(reason string) Rule {
	return func(c Caller, t Target) Decision {
		if c.UserID != 0 && c.UserID == t.OwnerUserID {
			return allow(Scope{})
		}
		return deny(reason)
	}
}

func doctorScope(c Caller, _ Target) Decision {
	if c.DoctorID == nil {
		return missingProfile(MsgDoctorProfileMissing)
	}
	id := *c.DoctorID
	return allow(Scope{DoctorID: &id})
}

func patientScope(c Caller, _ Target) Decision {
	if c.PatientID == nil {
		return missingProfile(MsgPatientProfileMissing)
	}
	id := *c.PatientID
	return allow(Scope{PatientID: &id})
}

// DefaultPolicies returns the clinic's access rules.
func DefaultPolicies() []Policy {
	return []Policy{
		// Users
		{Entity: EntityUser, Operation: OpCreate, Admin: allowAll, Denied: MsgAdminsOnly},
		{Entity: EntityUser, Operation: OpList, Admin: allowAll, Denied: MsgAdminsOnly},
		{Entity: EntityUser, Operation: OpReadSelf, Admin: allowAll, Doctor: allowAll, Patient: allowAll},

		// Patient profiles
		{Entity: EntityPatient, Operation: OpCreate, Admin: allowAll, Doctor: allowAll},
		{Entity: EntityPatient, Operation: OpList, Admin: allowAll, Doctor: allowAll},
		{Entity: EntityPatient, Operation: OpRead, Admin: allowAll, Doctor: allowAll,
			Patient: ownUser(MsgOtherPatientData)},
		{Entity: EntityPatient, Operation: OpReadSelf, Patient: allowAll, Denied: MsgPatientsOnly},
		{Entity: EntityPatient, Operation: OpUpdate, Admin: allowAll, Doctor: allowAll},
		{Entity: EntityPatient, Operation: OpDelete, Admin: allowAll, Denied: MsgAdminsOnly},

		// Doctor profiles
		{Entity: EntityDoctor, Operation: OpCreate, Admin: allowAll, Denied: MsgAdminsOnly},
		{Entity: EntityDoctor, Operation: OpList, Admin: allowAll, Denied: MsgAdminsOnly},
		{Entity: EntityDoctor, Operation: OpRead, Admin: allowAll, Doctor: allowAll, Patient: allowAll},
		{Entity: EntityDoctor, Operation: OpReadSelf, Doctor: allowAll, Denied: MsgDoctorsOnly},
		{Entity: EntityDoctor, Operation: OpUpdate, Admin: allowAll,
			Doctor: ownUser(MsgOwnDoctorProfile)},
		{Entity: EntityDoctor, Operation: OpDelete, Admin: allowAll, Denied: MsgAdminsOnly},

		// Appointments
		{Entity: EntityAppointment, Operation: OpCreate, Admin: allowAll,
			Doctor:  ownDoctor(MsgApptDoctorCreate),
			Patient: ownPatient(MsgApptPatientCreate)},
		{Entity: EntityAppointment, Operation: OpList, Admin: allowAll,
			Doctor: doctorScope, Patient: patientScope},
		{Entity: EntityAppointment, Operation: OpRead, Admin: allowAll,
			Doctor:  ownDoctor(MsgApptAccess),
			Patient: ownPatient(MsgApptAccess)},
		{Entity: EntityAppointment, Operation: OpUpdate, Admin: allowAll,
			Doctor: ownDoctor(MsgApptUpdateOwn), Denied: MsgApptUpdateRole},
		{Entity: EntityAppointment, Operation: OpCancel, Admin: allowAll,
			Doctor:  ownDoctor(MsgApptCancel),
			Patient: ownPatient(MsgApptCancel)},
		{Entity: EntityAppointment, Operation: OpDelete, Admin: allowAll, Denied: MsgApptDelete},

		// Clinical histories
		{Entity: EntityClinicalHistory, Operation: OpCreate, Admin: allowAll,
			Doctor: ownDoctor(MsgHistDoctorCreate), Denied: MsgHistCreateRole},
		{Entity: EntityClinicalHistory, Operation: OpList, Admin: allowAll,
			Doctor: doctorScope, Patient: patientScope},
		{Entity: EntityClinicalHistory, Operation: OpRead, Admin: allowAll,
			Doctor:  ownDoctor(MsgHistDoctorAccess),
			Patient: ownPatient(MsgHistPatientAccess)},
		{Entity: EntityClinicalHistory, Operation: OpListByPatient,
			Admin: func(_ Caller, t Target) Decision {
				id := t.PatientID
				return allow(Scope{PatientID: &id})
			},
			Doctor: func(c Caller, t Target) Decision {
				if c.DoctorID == nil {
					return missingProfile(MsgDoctorProfileMissing)
				}
				pid, did := t.PatientID, *c.DoctorID
				return allow(Scope{PatientID: &pid, DoctorID: &did})
			},
			Patient: func(c Caller, t Target) Decision {
				if !c.OwnsPatient(t.PatientID) {
					return deny(MsgHistPatientList)
				}
				id := t.PatientID
				return allow(Scope{PatientID: &id})
			}},
		{Entity: EntityClinicalHistory, Operation: OpUpdate, Admin: allowAll,
			Doctor: ownDoctor(MsgHistDoctorUpdate), Denied: MsgHistUpdateRole},
		{Entity: EntityClinicalHistory, Operation: OpDelete, Admin: allowAll, Denied: MsgHistDelete},
	}
}
