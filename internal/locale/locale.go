// Package locale is the single table of user-facing strings.
//
// Every string shown to a user goes through a Translator so the shell never
// mixes languages. English is the fallback; Spanish is provided because the
// backend it was built against speaks it.
package locale

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a user-facing message.
type Key string

// Message keys.
const (
	DatabasesLoading Key = "databases.loading"
	DatabasesEmpty   Key = "databases.empty"
	DatabasesError   Key = "databases.error"
	DatabasePrompt   Key = "databases.prompt"

	SchemasLoading Key = "schemas.loading"
	SchemasEmpty   Key = "schemas.empty"
	SchemasError   Key = "schemas.error"
	SchemasIdle    Key = "schemas.idle"

	TablesLoading Key = "tables.loading"
	TablesEmpty   Key = "tables.empty"
	TablesError   Key = "tables.error"
	TablesHeading Key = "tables.heading"

	IndexesHeading Key = "indexes.heading"
	ColumnsHeading Key = "columns.heading"

	QueryHeading     Key = "query.heading"
	QueryRun         Key = "query.run"
	QueryRunning     Key = "query.running"
	QueryResults     Key = "query.results"
	QueryNoResults   Key = "query.no_results"
	QueryFailed      Key = "query.failed"
	QueryFailedWith  Key = "query.failed_with"
	QueryUnreachable Key = "query.unreachable"
	QueryBusy        Key = "query.busy"
	QueryEmpty       Key = "query.empty"
	QueryRowCount    Key = "query.row_count"
	QueryMalformed   Key = "query.malformed"

	HelpKeys Key = "help.keys"

	NoDatabaseSelected Key = "repl.no_database"
	NoSchemaSelected   Key = "repl.no_schema"
	UsageUse           Key = "repl.usage_use"
	UsageDescribe      Key = "repl.usage_describe"
	UsageFormat        Key = "repl.usage_format"
	UnknownCommand     Key = "repl.unknown_command"
	ErrorWith          Key = "error.with"
	TableNotFound      Key = "tables.not_found"
	NotLoaded          Key = "catalog.not_loaded"
	ReplBanner         Key = "repl.banner"
	ReplHelp           Key = "repl.help"

	PageTitle   Key = "ui.title"
	BadRequest  Key = "ui.bad_request"
	RowsElapsed Key = "query.rows_elapsed"
)

type entry struct {
	key Key
	en  string
	es  string
}

var table = []entry{
	{DatabasesLoading, "Loading databases...", "Cargando bases de datos..."},
	{DatabasesEmpty, "No databases", "No hay bases de datos"},
	{DatabasesError, "Could not load databases", "Error al obtener las bases de datos"},
	{DatabasePrompt, "Select database...", "Seleccionar base de datos..."},

	{SchemasLoading, "Loading schemas...", "Cargando schemas..."},
	{SchemasEmpty, "No schemas", "No hay schemas"},
	{SchemasError, "Could not load schemas", "Error al obtener los schemas"},
	{SchemasIdle, "Select a database to browse its schemas", "Seleccione una base de datos para ver sus schemas"},

	{TablesLoading, "Loading tables...", "Cargando tablas..."},
	{TablesEmpty, "No tables", "No hay tablas"},
	{TablesError, "Could not load tables", "Error al obtener las tablas"},
	{TablesHeading, "Tables", "Tablas"},

	{IndexesHeading, "Indexes", "Índices"},
	{ColumnsHeading, "Columns", "Columnas"},

	{QueryHeading, "Query", "Consulta"},
	{QueryRun, "Run", "Ejecutar"},
	{QueryRunning, "Running query...", "Ejecutando consulta..."},
	{QueryResults, "Results", "Resultados"},
	{QueryNoResults, "No results yet", "Sin resultados"},
	{QueryFailed, "Query failed", "Error al ejecutar la consulta"},
	{QueryFailedWith, "Query failed: %s", "Error al ejecutar la consulta: %s"},
	{QueryUnreachable, "Could not reach the server", "No se pudo conectar con el servidor"},
	{QueryBusy, "A query is already running", "Ya hay una consulta en ejecución"},
	{QueryEmpty, "Query cannot be empty", "La consulta no puede estar vacía"},
	{QueryRowCount, "%d rows", "%d filas"},
	{QueryMalformed, "The server returned an unreadable result", "El servidor devolvió un resultado ilegible"},

	{HelpKeys, "tab: switch pane  enter: select  ctrl+r: run  f1: help  ctrl+c: quit", "tab: cambiar panel  enter: seleccionar  ctrl+r: ejecutar  f1: ayuda  ctrl+c: salir"},

	{NoDatabaseSelected, "No database selected (use .use <database>)", "No hay base de datos seleccionada (use .use <base de datos>)"},
	{NoSchemaSelected, "No schema selected (use .use <database> <schema>)", "No hay schema seleccionado (use .use <base de datos> <schema>)"},
	{UsageUse, "Usage: .use <database> [schema]", "Uso: .use <base de datos> [schema]"},
	{UsageDescribe, "Usage: .describe <table>", "Uso: .describe <tabla>"},
	{UsageFormat, "Usage: .format table|json|csv|md|yaml", "Uso: .format table|json|csv|md|yaml"},
	{UnknownCommand, "Unknown command: %s (type .help for commands)", "Comando desconocido: %s (escriba .help para ver los comandos)"},
	{ErrorWith, "Error: %v", "Error: %v"},
	{TableNotFound, "Table %q not found", "No se encontró la tabla %q"},
	{NotLoaded, "Nothing has been loaded yet", "Todavía no se ha cargado nada"},
	{ReplBanner, "Type .help for commands, .quit to exit", "Escriba .help para ver los comandos, .quit para salir"},
	{ReplHelp, replHelpEN, replHelpES},

	{PageTitle, "pkshell", "pkshell"},
	{BadRequest, "Could not read the request", "No se pudo leer la solicitud"},
	{RowsElapsed, "%d rows in %s", "%d filas en %s"},
}

const replHelpEN = `
Commands:
  .help                      Show this help message
  .databases                 List databases
  .use <database> [schema]   Select a database and schema
  .schemas                   List schemas of the selected database
  .tables                    List tables of the selected schema
  .describe <table>          Show columns and indexes of a table
  .tree                      Show the catalog tree
  .format <fmt>              Set output format (table, json, csv, md, yaml)
  .clear                     Clear the screen
  .quit / .exit              Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Queries run against the selected database and schema
  - Use arrow keys to navigate history
  - Tab completion works for database and table names
`

const replHelpES = `
Comandos:
  .help                      Muestra esta ayuda
  .databases                 Lista las bases de datos
  .use <base> [schema]       Selecciona una base de datos y un schema
  .schemas                   Lista los schemas de la base seleccionada
  .tables                    Lista las tablas del schema seleccionado
  .describe <tabla>          Muestra columnas e índices de una tabla
  .tree                      Muestra el árbol del catálogo
  .format <fmt>              Cambia el formato (table, json, csv, md, yaml)
  .clear                     Limpia la pantalla
  .quit / .exit              Sale del REPL

Consejos:
  - Las sentencias SQL terminan en punto y coma (;)
  - Las consultas usan la base y el schema seleccionados
  - Las flechas recorren el historial
  - Tab completa nombres de bases de datos y tablas
`

var supported = []language.Tag{language.English, language.Spanish}

var messages = buildCatalog()

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, e := range table {
		// SetString only fails for malformed tags, and these are constants.
		_ = b.SetString(language.English, string(e.key), e.en)
		_ = b.SetString(language.Spanish, string(e.key), e.es)
	}
	return b
}

// Translator renders messages in one language.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Translator for lang (a BCP 47 tag such as "en" or "es-AR").
// An empty lang selects English. Unsupported languages fall back to the
// closest supported one.
func New(lang string) (*Translator, error) {
	tag := language.English
	if lang != "" {
		parsed, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", lang, err)
		}
		_, idx, _ := language.NewMatcher(supported).Match(parsed)
		tag = supported[idx]
	}
	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(messages)),
	}, nil
}

// Default returns the English translator.
func Default() *Translator {
	t, _ := New("")
	return t
}

// Tag returns the language messages are rendered in.
func (t *Translator) Tag() language.Tag {
	return t.tag
}

// T renders the message for key. Arguments fill the message's verbs.
func (t *Translator) T(key Key, args ...any) string {
	return t.printer.Sprintf(string(key), args...)
}

// Title upper-cases the first letter of each word using the translator's
// language rules.
func (t *Translator) Title(s string) string {
	return cases.Title(t.tag).String(s)
}

// Keys returns every known message key, in table order.
func Keys() []Key {
	keys := make([]Key, len(table))
	for i, e := range table {
		keys[i] = e.key
	}
	return keys
}
