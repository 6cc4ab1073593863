package school

// SetAdmissionDigits replaces the admission number generator until restore is called.
func SetAdmissionDigits(f func() string) (restore func()) {
	orig := admissionDigits
	admissionDigits = f
	return func() { admissionDigits = orig }
}
