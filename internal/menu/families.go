package menu

import "github.com/valarieck/waconcierge/internal/session"

// FamilyFixed and FamilyLookup name the two built-in menu families. They
// share the same engine mechanics; they differ in graph shape and timeout.
const (
	FamilyFixed  = "fixed"
	FamilyLookup = "lookup"
)

// FixedTree returns the customer-service decision tree: static menus whose
// leaves answer with canned text.
func FixedTree() *Registry {
	nodes := []*Node{
		{
			ID:    "MAIN",
			Title: "🤖 *Menú Principal*",
			Body:  "Por favor, selecciona una opción:\n\n1️⃣ Soporte\n2️⃣ Productos\n3️⃣ Facturas\n\n_Escribe el número de tu opción_",
			Options: map[string]Option{
				"1": {Action: "SOPORTE", Kind: KindBranch, Next: "SOPORTE"},
				"2": {Action: "PRODUCTOS", Kind: KindBranch, Next: "PRODUCTOS"},
				"3": {Action: "FACTURAS", Kind: KindBranch, Next: "FACTURAS"},
			},
		},
		{
			ID:    "SOPORTE",
			Title: "🆘 *Soporte Técnico*",
			Body:  "¿En qué podemos ayudarte?\n\n1️⃣ Problema técnico\n2️⃣ Consulta general\n3️⃣ Hablar con un agente\n0️⃣ Volver al menú principal\n\n_Escribe el número de tu opción_",
			Options: map[string]Option{
				"1": {Action: "PROBLEMA_TECNICO", Kind: KindLeaf, Response: "🔧 Por favor, describe tu problema técnico y un agente te contactará pronto."},
				"2": {Action: "CONSULTA_GENERAL", Kind: KindLeaf, Response: "💬 Por favor, escribe tu consulta y te responderemos a la brevedad."},
				"3": {Action: "AGENTE", Kind: KindLeaf, Response: "👤 Un agente humano te contactará en breve. Tiempo estimado: 5 minutos."},
				"0": {Action: "BACK", Kind: KindBranch, Next: "MAIN"},
			},
		},
		{
			ID:    "PRODUCTOS",
			Title: "🛍️ *Catálogo de Productos*",
			Body:  "¿Qué te interesa?\n\n1️⃣ Ver catálogo completo\n2️⃣ Productos en oferta\n3️⃣ Nuevos productos\n0️⃣ Volver al menú principal\n\n_Escribe el número de tu opción_",
			Options: map[string]Option{
				"1": {Action: "CATALOGO", Kind: KindLeaf, Response: "📋 Aquí está nuestro catálogo: https://ejemplo.com/catalogo"},
				"2": {Action: "OFERTAS", Kind: KindLeaf, Response: "🔥 ¡Ofertas especiales! https://ejemplo.com/ofertas"},
				"3": {Action: "NUEVOS", Kind: KindLeaf, Response: "✨ Productos nuevos: https://ejemplo.com/nuevos"},
				"0": {Action: "BACK", Kind: KindBranch, Next: "MAIN"},
			},
		},
		{
			ID:    "FACTURAS",
			Title: "📄 *Facturas*",
			Body:  "¿Qué necesitas?\n\n1️⃣ Consultar factura\n2️⃣ Solicitar factura\n3️⃣ Reportar problema con factura\n0️⃣ Volver al menú principal\n\n_Escribe el número de tu opción_",
			Options: map[string]Option{
				"1": {Action: "CONSULTAR_FACTURA", Kind: KindLeaf, Response: "🔍 Por favor, envía el número de tu factura."},
				"2": {Action: "SOLICITAR_FACTURA", Kind: KindLeaf, Response: "📨 Por favor, envía tu RFC y número de pedido."},
				"3": {Action: "PROBLEMA_FACTURA", Kind: KindLeaf, Response: "⚠️ Describe el problema con tu factura y te ayudaremos."},
				"0": {Action: "BACK", Kind: KindBranch, Next: "MAIN"},
			},
		},
	}

	reg, err := NewRegistry("MAIN", nodes)
	if err != nil {
		// Built-in tables are validated by tests; a bad one is a programming error.
		panic(err)
	}
	return reg
}

// LookupMenu returns the person/vehicle search menu. Its single node fans out
// into the three input-collection prompts.
func LookupMenu() *Registry {
	nodes := []*Node{
		{
			ID: "PRINCIPAL",
			// Empty title: rendered with a rotating headline and greeting.
			Body: "¿Cómo deseas buscar?\n\n1️⃣ Buscar por Nombre\n2️⃣ Buscar por Cédula\n3️⃣ Buscar por Placa\n0️⃣ Salir\n\n_Escribe el número de tu opción_",
			Options: map[string]Option{
				"1": {
					Action:   "BUSCAR_NOMBRE",
					Kind:     KindPrompt,
					State:    session.StateAwaitingName,
					Response: "👤 *Búsqueda por Nombre*\n\n📝 Por favor, escribe el nombre completo o parcial de la persona que deseas buscar:\n\n_Ejemplo: Juan Pérez_",
				},
				"2": {
					Action:   "BUSCAR_CEDULA",
					Kind:     KindPrompt,
					State:    session.StateAwaitingID,
					Response: "🆔 *Búsqueda por Cédula*\n\n📝 Por favor, escribe el número de cédula (10 dígitos):\n\n_Ejemplo: 1234567890_",
				},
				"3": {
					Action:   "BUSCAR_PLACA",
					Kind:     KindPrompt,
					State:    session.StateAwaitingPlate,
					Response: "🚗 *Búsqueda por Placa*\n\n📝 Por favor, escribe el número de placa del vehículo:\n\n_Ejemplo: AAA3175_",
				},
			},
		},
	}

	reg, err := NewRegistry("PRINCIPAL", nodes)
	if err != nil {
		panic(err)
	}
	return reg
}
