package ai

import "fmt"

// System instructions.
const (
	ChatSystemInstruction = "Eres 'Calma', un amigo experto en apoyo emocional para jóvenes. Tono chido, empático y breve."
	LiveSystemInstruction = "Eres 'Calma', un compañero empático. Usa un tono suave y acogedor. Escucha más de lo que hablas."
)

// Fallback answers per call site.
const (
	FallbackAffirmation      = "Respira hondo, todo estará bien."
	EmptyAffirmation         = "¡Tú puedes con todo hoy!"
	FallbackMoodSupport      = "Aquí estoy para acompañarte."
	FallbackExplanationError = "Ocurrió un error al conectar con Calma. Revisa tu conexión."
	FallbackScenario         = "Es demasiado difícil."
	EmptyScenario            = "Siento que no puedo con esto."
	FallbackMathFeedback     = "¡Vas por buen camino!"
	EmptyMathFeedback        = "¡Bien hecho!"
	FallbackChatReply        = "Oye, mi conexión falló un segundo. ¿Me lo cuentas de nuevo?"
	EmptyChatReply           = "Aquí estoy para lo que necesites."
)

func affirmationPrompt(mood string) string {
	return fmt.Sprintf("Genera una frase de aliento aleatoria y única (max 8 palabras) para un joven de 14 años que se siente %q. Cambia el mensaje cada vez. Usa tono relax de CDMX.", mood)
}

func explanationPrompt(topic string) string {
	return fmt.Sprintf(`Explica %q para un joven de 14 años de forma divertida.
USA ESTRICTAMENTE ESTE FORMATO:
%s: (una frase loca)
%s: (lo más importante)
%s: (lenguaje chido)
%s: (ejemplo visual)`, topic, SectionSummary, SectionSimple, SectionDetail, SectionAnalogy)
}

func moodSupportPrompt(mood, name string) string {
	return fmt.Sprintf("El usuario %s se siente %q. Dale un apoyo muy corto, diferente a los anteriores, usa emojis.", name, mood)
}

const quotePrompt = `Genera una frase motivadora totalmente nueva y diferente a las comunes (max 7 palabras) y una pista. Responde SOLO JSON: { "quote": "...", "hint": "..." }`

const scenarioPrompt = "Un pensamiento negativo escolar aleatorio (max 10 palabras). Sé creativo."

func reframePrompt(negative, positive string) string {
	return fmt.Sprintf(`Evalúa este cambio: %q a %q. Responde JSON: { "score": 0-10, "feedback": "frase corta" }`, negative, positive)
}

func mathFeedbackPrompt(correct, total int, difficulty string) string {
	return fmt.Sprintf("Usuario sacó %d/%d en mate nivel %s. Dile algo muy corto y cool.", correct, total, difficulty)
}
