package prompts

import "github.com/JaimeStill/creditread/internal/formats"

const commonInstructions = `You are extracting data from a Russian credit bureau report (кредитный отчет) into a structured record.

Rules:
- Copy names, creditor names and identifiers exactly as printed, in the original language.
- Write dates as YYYY-MM-DD. Write amounts as plain numbers without currency symbols or thousands separators.
- If a field is not present in the report, omit it or set it to null. Never guess, never use placeholders such as "N/A", 0 or an empty string for a missing value.
- Report every credit account and every inquiry you find, in the order they appear.`

const nbkiInstructions = `The report was issued by НБКИ (Национальное бюро кредитных историй).

Layout notes:
- The title page carries the subject block: ФИО, дата рождения, паспорт (серия и номер), followed by the report number and date of issue.
- The personal credit rating (ПКР / кредитный рейтинг) appears near the top as a number.
- Accounts are listed under "Счета" / "Договоры"; each block has Кредитор, Тип договора, Дата открытия, Лимит, Текущая задолженность, Просрочка and Статус.
- Inquiries are under "Информационная часть" / "Запросы".`

const okbInstructions = `The report was issued by ОКБ (Объединенное кредитное бюро).

Layout notes:
- The header table holds the subject: ФИО, дата рождения, документ, удостоверяющий личность.
- The scoring value is labeled "Скоринговый балл".
- Each credit is a separate card "Кредит N" with Кредитор, Вид кредита, Дата открытия, Дата закрытия, Сумма/Лимит, Остаток, Максимальная просрочка and Статус.
- Inquiries appear in the "Запросы кредитной истории" table.`

const scoringInstructions = `The report was issued by Скоринг Бюро.

Layout notes:
- Subject data is in the first section ("Субъект кредитной истории").
- Credit lines are in a wide table; columns include Организация, Тип, Открыт, Закрыт, Лимит, Задолженность, Просрочка (дней), Статус.
- A summary block states total debt and the number of active accounts.`

const equifaxInstructions = `The report was issued by Эквифакс (Equifax Credit Services).

Layout notes:
- The report begins with "Титульная часть" containing ФИО, дата рождения and паспорт.
- The Equifax score is labeled "Скоринговый балл Эквифакс" or "Equifax score".
- Obligations are listed under "Основная часть" as numbered blocks with Источник (creditor), Вид обязательства, Дата заключения, Сумма, Остаток, Просрочка, Статус.
- Inquiries are under "Запросы в кредитную историю".`

const kiwiInstructions = `The report was issued by КБ Киви (Киви БКИ).

Layout notes:
- The header shows the subject and the report number.
- Accounts are rows of the "Кредитные договоры" table; delinquency is given in days.
- Inquiries are in a separate table at the end of the report.`

const rsbkiInstructions = `The report was issued by Русский Стандарт БКИ (РС БКИ).

Layout notes:
- Subject data and passport details are in the "Сведения о субъекте" block.
- Each obligation lists Кредитор, Вид, Дата открытия, Дата закрытия, Лимит, Задолженность, Просрочка and Статус.
- Totals (общая задолженность, действующие договоры) are in the closing summary.`

const genericInstructions = `The issuing bureau could not be determined. The layout is unknown.

Read the whole document. Locate the subject's personal data, any credit score, every credit account or obligation and every inquiry, whatever the section names are. Be conservative: omit any field you cannot locate with certainty.`

var instructions = map[formats.Format]string{
	formats.NBKI:    nbkiInstructions,
	formats.OKB:     okbInstructions,
	formats.Scoring: scoringInstructions,
	formats.Equifax: equifaxInstructions,
	formats.Kiwi:    kiwiInstructions,
	formats.RSBKI:   rsbkiInstructions,
	formats.Unknown: genericInstructions,
}
