package ports

// SchemaRegistry manages JSON schemas for the messages carried on named channels.
type SchemaRegistry interface {
	// Register adds a schema generated from a Go struct.
	Register(name string, model any) error

	// GetSchema retrieves the JSON Schema for a message type.
	GetSchema(name string) (string, bool)

	// List returns all registered message names.
	List() []string
}
