package vision

import (
	"fmt"
	"strings"

	"github.com/Proton-105/homebox-bot/internal/domain"
)

type prompts struct {
	analyze   string
	caption   string
	summarize string
	noItems   string
}

// %[1]s is the location list, %[2]s the optional caption block.
var promptsByLanguage = map[string]prompts{
	"en": {
		analyze: `You are an expert at identifying household items and organizing them. Analyze this image and provide:
1. name: a concise, specific name (max 50 chars), including brand or model when visible;
2. description: material, color, condition and distinguishing features (max 200 chars);
3. suggested_location: the most suitable location from the list below. Pay attention to the location descriptions.

Available locations:
%[1]s%[2]s
Respond ONLY with JSON: {"name": "...", "description": "...", "suggested_location": "exact location name from the list"}`,
		caption:   "\nAdditional information from the photo description: %q. Use it to identify the item more accurately.\n",
		summarize: "Write a short description (max 200 chars) of the storage location %q based on the items it holds. Reply with the description text only.\n\nItems:\n%s",
		noItems:   "(no items yet)",
	},
	"ru": {
		analyze: `Ты эксперт по определению бытовых предметов и их организации. Проанализируй изображение и укажи:
1. name: краткое точное название (не более 50 символов), с брендом или моделью, если они видны;
2. description: материал, цвет, состояние и отличительные признаки (не более 200 символов);
3. suggested_location: самое подходящее место хранения из списка ниже. Учитывай описания мест.

Доступные места:
%[1]s%[2]s
Ответь ТОЛЬКО JSON: {"name": "...", "description": "...", "suggested_location": "точное название места из списка"}`,
		caption:   "\nДополнительная информация из описания фото: %q. Используй её для более точного определения предмета.\n",
		summarize: "Составь краткое описание (не более 200 символов) места хранения %q по предметам, которые в нём лежат. Ответь только текстом описания.\n\nПредметы:\n%s",
		noItems:   "(предметов пока нет)",
	},
	"de": {
		analyze: `Sie sind Experte für die Identifizierung und Organisation von Haushaltsgegenständen. Analysieren Sie dieses Bild und geben Sie an:
1. name: ein prägnanter, spezifischer Name (max. 50 Zeichen), mit Marke oder Modell, falls sichtbar;
2. description: Material, Farbe, Zustand und besondere Merkmale (max. 200 Zeichen);
3. suggested_location: der passendste Ort aus der folgenden Liste. Beachten Sie die Ortsbeschreibungen.

Verfügbare Orte:
%[1]s%[2]s
Antworten Sie NUR mit JSON: {"name": "...", "description": "...", "suggested_location": "exakter Ortsname aus der Liste"}`,
		caption:   "\nZusätzliche Informationen aus der Fotobeschreibung: %q. Verwenden Sie sie, um den Gegenstand genauer zu identifizieren.\n",
		summarize: "Schreiben Sie eine kurze Beschreibung (max. 200 Zeichen) des Lagerorts %q anhand der dort gelagerten Gegenstände. Antworten Sie nur mit dem Beschreibungstext.\n\nGegenstände:\n%s",
		noItems:   "(noch keine Gegenstände)",
	},
	"fr": {
		analyze: `Vous êtes expert dans l'identification et le rangement des objets domestiques. Analysez cette image et indiquez :
1. name : un nom concis et précis (50 caractères max), avec la marque ou le modèle s'ils sont visibles ;
2. description : matière, couleur, état et signes distinctifs (200 caractères max) ;
3. suggested_location : l'emplacement le plus adapté dans la liste ci-dessous. Tenez compte des descriptions des emplacements.

Emplacements disponibles :
%[1]s%[2]s
Répondez UNIQUEMENT en JSON : {"name": "...", "description": "...", "suggested_location": "nom exact de l'emplacement"}`,
		caption:   "\nInformations supplémentaires de la description de la photo : %q. Utilisez-les pour identifier l'objet plus précisément.\n",
		summarize: "Rédigez une courte description (200 caractères max) de l'emplacement %q d'après les objets qu'il contient. Répondez uniquement avec le texte de la description.\n\nObjets :\n%s",
		noItems:   "(aucun objet pour l'instant)",
	},
	"es": {
		analyze: `Eres un experto en identificar y organizar objetos del hogar. Analiza esta imagen e indica:
1. name: un nombre conciso y específico (máx. 50 caracteres), con marca o modelo si son visibles;
2. description: material, color, estado y rasgos distintivos (máx. 200 caracteres);
3. suggested_location: la ubicación más adecuada de la lista siguiente. Ten en cuenta las descripciones de las ubicaciones.

Ubicaciones disponibles:
%[1]s%[2]s
Responde SOLO con JSON: {"name": "...", "description": "...", "suggested_location": "nombre exacto de la ubicación"}`,
		caption:   "\nInformación adicional de la descripción de la foto: %q. Úsala para identificar el objeto con mayor precisión.\n",
		summarize: "Escribe una descripción breve (máx. 200 caracteres) de la ubicación %q según los objetos que contiene. Responde solo con el texto de la descripción.\n\nObjetos:\n%s",
		noItems:   "(todavía no hay objetos)",
	},
}

func promptsFor(lang string) prompts {
	if p, ok := promptsByLanguage[lang]; ok {
		return p
	}
	return promptsByLanguage[domain.DefaultGenLanguage]
}

func analyzePrompt(lang string, candidates []domain.Location, caption string) string {
	p := promptsFor(lang)

	var list strings.Builder
	for _, loc := range candidates {
		list.WriteString("- ")
		list.WriteString(loc.Name)
		if loc.Description != "" {
			list.WriteString(": ")
			list.WriteString(loc.Description)
		}
		list.WriteByte('\n')
	}

	captionBlock := ""
	if c := strings.TrimSpace(caption); c != "" {
		captionBlock = fmt.Sprintf(p.caption, c)
	}

	return fmt.Sprintf(p.analyze, list.String(), captionBlock)
}

func summarizePrompt(lang, locationName string, items []domain.ItemSummary) string {
	p := promptsFor(lang)

	var list strings.Builder
	for _, item := range items {
		list.WriteString("- ")
		list.WriteString(item.Name)
		if item.Description != "" {
			list.WriteString(": ")
			list.WriteString(item.Description)
		}
		list.WriteByte('\n')
	}
	if len(items) == 0 {
		list.WriteString(p.noItems)
	}

	return fmt.Sprintf(p.summarize, locationName, list.String())
}
