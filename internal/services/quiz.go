package services

// QuizItem is one forced-choice question. The respondent picks a magnitude
// in [1,5]: 1 means "fully the A statement", 5 means "fully the B statement".
type QuizItem struct {
	ID      int    `json:"id"`
	PromptA string `json:"prompt_a"`
	PromptB string `json:"prompt_b"`
	Axis    Axis   `json:"axis"`
}

// QuizItems is the full questionnaire, defined once and never mutated.
// Item ids match the scoring formulas in ComputeType: ids 1,5,9,... load the
// JP axis, 2,6,10,... FT, 3,7,11,... EI and 4,8,12,... SN.
var QuizItems = []QuizItem{
	{ID: 1, PromptA: "Я планирую дела заранее", PromptB: "Я решаю по ходу дела", Axis: AxisJP},
	{ID: 2, PromptA: "Я доверяю логике", PromptB: "Я доверяю чувствам", Axis: AxisFT},
	{ID: 3, PromptA: "Шумная компания заряжает меня", PromptB: "Шумная компания утомляет меня", Axis: AxisEI},
	{ID: 4, PromptA: "Мне интересны новые идеи", PromptB: "Мне интересны проверенные факты", Axis: AxisSN},
	{ID: 5, PromptA: "Свобода важнее расписания", PromptB: "Расписание важнее свободы", Axis: AxisJP},
	{ID: 6, PromptA: "В споре я ищу истину", PromptB: "В споре я ищу согласие", Axis: AxisFT},
	{ID: 7, PromptA: "Я легко знакомлюсь с людьми", PromptB: "Я сближаюсь с людьми медленно", Axis: AxisEI},
	{ID: 8, PromptA: "Я люблю размышлять о будущем", PromptB: "Я живу сегодняшним днём", Axis: AxisSN},
	{ID: 9, PromptA: "Незавершённые дела мне мешают", PromptB: "Незавершённые дела меня не тревожат", Axis: AxisJP},
	{ID: 10, PromptA: "Справедливость важнее милосердия", PromptB: "Милосердие важнее справедливости", Axis: AxisFT},
	{ID: 11, PromptA: "Я думаю вслух", PromptB: "Я думаю про себя", Axis: AxisEI},
	{ID: 12, PromptA: "Мне нравятся метафоры и образы", PromptB: "Мне нравятся точные формулировки", Axis: AxisSN},
	{ID: 13, PromptA: "Сюрпризы меня радуют", PromptB: "Сюрпризы меня напрягают", Axis: AxisJP},
	{ID: 14, PromptA: "Я замечаю чужие ошибки", PromptB: "Я замечаю чужие старания", Axis: AxisFT},
	{ID: 15, PromptA: "Выходные лучше провести с друзьями", PromptB: "Выходные лучше провести наедине", Axis: AxisEI},
	{ID: 16, PromptA: "Я угадываю, к чему всё идёт", PromptB: "Я опираюсь на то, что вижу", Axis: AxisSN},
	{ID: 17, PromptA: "Я составляю списки дел", PromptB: "Я держу всё в голове", Axis: AxisJP},
	{ID: 18, PromptA: "Критика должна быть прямой", PromptB: "Критика должна быть бережной", Axis: AxisFT},
	{ID: 19, PromptA: "Я говорю больше, чем слушаю", PromptB: "Я слушаю больше, чем говорю", Axis: AxisEI},
	{ID: 20, PromptA: "Мне скучно повторять одно и то же", PromptB: "Мне спокойно в привычной рутине", Axis: AxisSN},
	{ID: 21, PromptA: "Срок мобилизует меня в последний момент", PromptB: "Я заканчиваю задолго до срока", Axis: AxisJP},
	{ID: 22, PromptA: "Решение должно быть обоснованным", PromptB: "Решение должно быть человечным", Axis: AxisFT},
	{ID: 23, PromptA: "После вечеринки я полон сил", PromptB: "После вечеринки мне нужно восстановиться", Axis: AxisEI},
	{ID: 24, PromptA: "Инструкции пишут не зря", PromptB: "Инструкции можно пропустить", Axis: AxisSN},
	{ID: 25, PromptA: "Порядок на столе — порядок в голове", PromptB: "Творческий беспорядок мне не мешает", Axis: AxisJP},
	{ID: 26, PromptA: "Я сначала думаю о деле", PromptB: "Я сначала думаю о людях", Axis: AxisFT},
	{ID: 27, PromptA: "Мне легко выступать перед залом", PromptB: "Выступления - это стресс для меня", Axis: AxisEI},
	{ID: 28, PromptA: "Детали важнее общей картины", PromptB: "Общая картина важнее деталей", Axis: AxisSN},
	{ID: 29, PromptA: "Я меняю планы без сожаления", PromptB: "Менять планы мне неприятно", Axis: AxisJP},
	{ID: 30, PromptA: "Главное в работе — результат", PromptB: "Главное в работе — атмосфера", Axis: AxisFT},
	{ID: 31, PromptA: "Молчание в разговоре меня смущает", PromptB: "Молчание в разговоре мне комфортно", Axis: AxisEI},
	{ID: 32, PromptA: "Я фантазирую о несбыточном", PromptB: "Я мечтаю о достижимом", Axis: AxisSN},
}
