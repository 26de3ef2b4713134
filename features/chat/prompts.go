package chat

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultSystem = `Você é um assistente especializado em informações sobre Aracaju, clima e prevenção.

INSTRUÇÕES IMPORTANTES:
1. Use as informações disponíveis no contexto fornecido
2. Extraia e sintetize dados relevantes dos documentos
3. Combine informações
4. Responda apenas o escopo que foi solicitado
`

const defaultInstruction = "Analise todo o contexto acima e forneça uma resposta útil e prática. " +
	"Extraia todas as informações relevantes disponíveis, incluindo medidas preventivas, " +
	"números de emergência, bairros afetados, e orientações específicas mencionadas nos documentos."

const defaultExpansion = `Reescreva a pergunta abaixo como uma consulta de busca semântica.
Extraia os conceitos-chave, acrescente sinônimos e termos relacionados e inclua
variações de singular, plural e formas verbais. Responda apenas com a consulta, em uma linha.

Pergunta: %s`

const defaultNoContext = "Não encontrei informações relevantes na base de conhecimento para responder sua pergunta."

// Prompts holds the texts sent to the generator. Expansion must contain a
// single %s for the user prompt.
type Prompts struct {
	System      string `yaml:"system"`
	Instruction string `yaml:"instruction"`
	Expansion   string `yaml:"expansion"`
	NoContext   string `yaml:"no_context"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		System:      defaultSystem,
		Instruction: defaultInstruction,
		Expansion:   defaultExpansion,
		NoContext:   defaultNoContext,
	}
}

// LoadPrompts reads overrides from a YAML file. Keys left out keep their
// default text. An empty path returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts file: %w", err)
	}
	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return p, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	if override.System != "" {
		p.System = override.System
	}
	if override.Instruction != "" {
		p.Instruction = override.Instruction
	}
	if override.Expansion != "" {
		if strings.Count(override.Expansion, "%s") != 1 {
			return p, fmt.Errorf("prompts file %s: expansion must contain exactly one %%s", path)
		}
		p.Expansion = override.Expansion
	}
	if override.NoContext != "" {
		p.NoContext = override.NoContext
	}
	return p, nil
}

func (p Prompts) expansion(prompt string) string {
	return fmt.Sprintf(p.Expansion, prompt)
}

func (p Prompts) userMessage(context, prompt string) string {
	return fmt.Sprintf("CONTEXTO DOS DOCUMENTOS:\n%s\n\nPERGUNTA: %s\n\nINSTRUÇÃO: %s", context, prompt, p.Instruction)
}
