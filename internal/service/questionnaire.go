package service

import "leadmatch/internal/model"

// maxAnswerLen bounds a stored answer in runes
const maxAnswerLen = 500

// Question is one questionnaire step
type Question struct {
	Field model.FieldName
	Text  string
}

// Questionnaire is the structured fallback used when no language model is
// available. Steps follow model.AllFields.
var Questionnaire = []Question{
	{
		Field: model.FieldBudget,
		Text:  "Какой у вас бюджет? 💰\n\nНапример:\n• до 150 000\n• 100-200 тысяч\n• от 200 000",
	},
	{
		Field: model.FieldSize,
		Text:  "Какая площадь нужна? 📐\n\nВ м², например:\n• от 50\n• 60-80\n• минимум 70",
	},
	{
		Field: model.FieldLocation,
		Text:  "В каком районе ищете? 🗺\n\nНапишите район или город.",
	},
	{
		Field: model.FieldRooms,
		Text:  "Сколько комнат? 🛏\n\n• Студия\n• 1 спальня\n• 2 спальни\n• 3+ спальни",
	},
	{
		Field: model.FieldReadiness,
		Text:  "Какая стадия готовности подходит? 🏗\n\n• Готовое\n• Строящееся (white/black frame)\n• Рассмотрю всё",
	},
	{
		Field: model.FieldContact,
		Text:  "Как с вами связаться? 📞\n\nТелефон или ник в мессенджере.",
	},
	{
		Field: model.FieldNotes,
		Text:  "Есть дополнительные пожелания? 📝\n\nЭтаж, вид, паркинг, расстояние до моря. Или напишите «нет».",
	},
}

// questionAt returns the question for a step, false past the last step
func questionAt(step int) (Question, bool) {
	if step < 0 || step >= len(Questionnaire) {
		return Question{}, false
	}
	return Questionnaire[step], true
}

// questionFor returns the question text that asks for field
func questionFor(field model.FieldName) string {
	for _, q := range Questionnaire {
		if q.Field == field {
			return q.Text
		}
	}
	return ""
}

// nextStep returns the first step at or after from whose field is still
// empty, or len(Questionnaire) when none is left
func nextStep(req *model.RequirementSet, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(Questionnaire); i++ {
		if req.Get(Questionnaire[i].Field) == "" {
			return i
		}
	}
	return len(Questionnaire)
}
