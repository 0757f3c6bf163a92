package domain

// Label keys set on helper containers so stray sessions can be found.
const (
	LabelManaged   = "dbsnap.managed"
	LabelOperation = "dbsnap.operation"
	LabelInstance  = "dbsnap.instance"
	LabelCreated   = "dbsnap.created"
)
