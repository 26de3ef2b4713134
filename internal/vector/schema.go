package vector

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// ChunkClass is the Weaviate class holding indexed chunks.
const ChunkClass = "VeritasChunk"

// ChunkProperties lists the properties stored with every chunk. The content
// property carries the full header blob so hybrid keyword search sees it.
func ChunkProperties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "filename", DataType: []string{"string"}},
		{Name: "documentName", DataType: []string{"text"}},
		{Name: "docType", DataType: []string{"string"}},
		{Name: "chunk", DataType: []string{"string"}},
	}
}

// EnsureSchema creates the class when missing and adds any property an
// older class lacks. Existing properties are never altered.
func EnsureSchema(ctx context.Context, client SchemaClient, className string, properties []*models.Property) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return fmt.Errorf("check class %s: %w", className, err)
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "A chunk of an indexed document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return fmt.Errorf("get class %s: %w", className, err)
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return fmt.Errorf("add property %s: %w", p.Name, err)
			}
		}
	}

	return nil
}
