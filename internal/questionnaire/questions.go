// Package questionnaire holds the question sets for partner profiling and
// compatibility testing, and tracks in-flight answering sessions.
package questionnaire

// Question is one item of a questionnaire. Options are offered as reply
// buttons; free-form answers are accepted too.
type Question struct {
	ID      string
	Text    string
	Options []string
}

// Kind discriminates the two questionnaire flows.
type Kind string

const (
	KindProfile       Kind = "profile"
	KindCompatibility Kind = "compatibility"
)

var scaleOptions = []string{"Никогда", "Редко", "Иногда", "Часто", "Постоянно"}

// ProfileQuestions is the partner profiling questionnaire. The order is
// fixed: questions probe control, gaslighting, narcissism, emotional
// volatility, intimacy and social isolation in turn.
var ProfileQuestions = []Question{
	{
		ID:      "control_spending",
		Text:    "Контролирует ли он ваши расходы или требует отчёта о покупках?",
		Options: scaleOptions,
	},
	{
		ID:      "control_whereabouts",
		Text:    "Требует ли он постоянно знать, где вы и с кем?",
		Options: scaleOptions,
	},
	{
		ID:      "control_decisions",
		Text:    "Принимает ли он важные решения за вас, не спрашивая вашего мнения?",
		Options: scaleOptions,
	},
	{
		ID:      "gaslighting_memory",
		Text:    "Бывает ли, что он отрицает свои слова или поступки, утверждая, что вы всё выдумали?",
		Options: scaleOptions,
	},
	{
		ID:      "gaslighting_feelings",
		Text:    "Говорит ли он, что вы «слишком остро реагируете» или «сошли с ума», когда вы выражаете недовольство?",
		Options: scaleOptions,
	},
	{
		ID:      "narcissism_criticism",
		Text:    "Как он реагирует на критику в свой адрес?",
		Options: []string{"Спокойно обсуждает", "Отшучивается", "Обижается", "Злится и нападает в ответ", "Мстит позже"},
	},
	{
		ID:      "narcissism_empathy",
		Text:    "Интересуется ли он вашими чувствами и переживаниями?",
		Options: []string{"Всегда", "Часто", "Иногда", "Редко", "Только когда ему что-то нужно"},
	},
	{
		ID:      "emotion_swings",
		Text:    "Насколько резко у него меняется настроение?",
		Options: []string{"Настроение стабильное", "Меняется плавно", "Бывают вспышки", "Резкие перепады каждый день", "Я хожу по минному полю"},
	},
	{
		ID:      "emotion_anger",
		Text:    "Боитесь ли вы его реакции, когда сообщаете неприятные новости?",
		Options: scaleOptions,
	},
	{
		ID:      "intimacy_silence",
		Text:    "Использует ли он молчание или холодность как наказание?",
		Options: scaleOptions,
	},
	{
		ID:      "intimacy_affection",
		Text:    "Проявляет ли он нежность только тогда, когда хочет что-то получить?",
		Options: scaleOptions,
	},
	{
		ID:      "social_friends",
		Text:    "Как он относится к вашим встречам с друзьями и родными?",
		Options: []string{"Поддерживает", "Нейтрально", "Недоволен, но терпит", "Устраивает сцены", "Запрещает"},
	},
	{
		ID:      "social_jealousy",
		Text:    "Проверяет ли он ваш телефон, переписки или соцсети?",
		Options: scaleOptions,
	},
	{
		ID:      "guilt_blame",
		Text:    "Кто, по его словам, обычно виноват в ваших конфликтах?",
		Options: []string{"Разбираем вместе", "Чаще он берёт вину", "По-разному", "Чаще виновата я", "Всегда виновата я"},
	},
	{
		ID:      "future_threats",
		Text:    "Угрожал ли он когда-нибудь — расставанием, разглашением личного, причинением вреда себе или вам?",
		Options: []string{"Никогда", "Один раз в ссоре", "Несколько раз", "Регулярно"},
	},
}

// CompatibilityQuestions is answered twice: once for the user, once on the
// partner's behalf.
var CompatibilityQuestions = []Question{
	{
		ID:      "conflict_style",
		Text:    "Как вы предпочитаете решать конфликты?",
		Options: []string{"Сразу обсудить", "Остыть и вернуться к разговору", "Промолчать", "Подождать, пока само пройдёт"},
	},
	{
		ID:      "free_time",
		Text:    "Идеальные выходные — это…",
		Options: []string{"Дома вдвоём", "Встречи с друзьями", "Активный отдых", "Каждый занимается своим"},
	},
	{
		ID:      "money_attitude",
		Text:    "Как вы относитесь к деньгам?",
		Options: []string{"Планирую и откладываю", "Трачу на впечатления", "Живу по средствам", "Деньги — не главное"},
	},
	{
		ID:      "family_priority",
		Text:    "Что для вас важнее всего в отношениях?",
		Options: []string{"Доверие", "Страсть", "Стабильность", "Личная свобода"},
	},
	{
		ID:      "future_plans",
		Text:    "Как вы видите ваши отношения через пять лет?",
		Options: []string{"Семья и дети", "Жизнь вдвоём без обязательств", "Каждый строит карьеру", "Не загадываю"},
	},
	{
		ID:      "communication_depth",
		Text:    "Насколько легко вам делиться переживаниями друг с другом?",
		Options: []string{"Рассказываю всё", "Делюсь важным", "Только по необходимости", "Держу при себе"},
	},
	{
		ID:      "personal_space",
		Text:    "Сколько личного пространства вам нужно?",
		Options: []string{"Почти не нужно", "Пара часов в день", "Регулярные дни для себя", "Много, я интроверт"},
	},
	{
		ID:      "habits_tolerance",
		Text:    "Как вы относитесь к привычкам партнёра, которые вас раздражают?",
		Options: []string{"Принимаю как есть", "Мягко обсуждаю", "Прошу измениться", "Накапливаю раздражение"},
	},
}

// QuestionsFor returns the question set for a flow kind.
func QuestionsFor(kind Kind) []Question {
	if kind == KindCompatibility {
		return CompatibilityQuestions
	}
	return ProfileQuestions
}
