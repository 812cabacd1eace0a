package stages

import "strings"

// User-facing prompt texts, keyed by purpose then language code.
// English is the hardcoded default when a language has no entry.

const (
	promptApology      = "apology"
	promptFallback     = "fallback"
	promptAskName      = "ask_name"
	promptAskNameAgain = "ask_name_again"
	promptAskEmail     = "ask_email"
	promptBadEmail     = "ask_email_again"
	promptAskDetails   = "ask_details"
	promptBadDetails   = "ask_details_again"
	promptAskConsent   = "ask_consent"
	promptConfirm      = "confirm"
	promptConfirmAgain = "confirm_again"
	promptWelcomeDone  = "welcome_done"
	promptRestart      = "restart"
	promptExitConfirm  = "exit_confirm"
	promptResume       = "resume"
)

var promptTable = map[string]map[string]string{
	promptApology: {
		"en": "Sorry, something went wrong on my side. Let's try that again.",
		"es": "Perdona, algo salió mal de mi lado. Intentémoslo de nuevo.",
		"pt": "Desculpa, algo deu errado do meu lado. Vamos tentar de novo.",
		"id": "Maaf, ada kendala di sisi saya. Mari kita coba lagi.",
	},
	promptFallback: {
		"en": "I'm having a little trouble answering right now, but we can keep going. Could you say that again?",
		"es": "Estoy teniendo un pequeño problema para responder, pero podemos seguir. ¿Puedes repetirlo?",
		"pt": "Estou com uma pequena dificuldade para responder agora, mas podemos continuar. Pode repetir?",
		"id": "Saya sedang kesulitan menjawab, tapi kita bisa lanjut. Bisa ulangi lagi?",
	},
	promptAskName: {
		"en": "Let's get you set up! What's your full name?",
		"es": "¡Vamos a registrarte! ¿Cuál es tu nombre completo?",
		"pt": "Vamos fazer seu cadastro! Qual é o seu nome completo?",
		"id": "Ayo kita daftarkan! Siapa nama lengkap Anda?",
	},
	promptAskNameAgain: {
		"en": "That doesn't look like a name to me. Could you tell me just your name, please?",
		"es": "Eso no parece un nombre. ¿Me dices solo tu nombre, por favor?",
		"pt": "Isso não parece um nome. Pode me dizer só o seu nome, por favor?",
		"id": "Sepertinya itu bukan nama. Bisa sebutkan nama Anda saja?",
	},
	promptAskEmail: {
		"en": "Thanks, %s! What's your email address?",
		"es": "¡Gracias, %s! ¿Cuál es tu correo electrónico?",
		"pt": "Obrigado, %s! Qual é o seu e-mail?",
		"id": "Terima kasih, %s! Apa alamat email Anda?",
	},
	promptBadEmail: {
		"en": "Hmm, that email doesn't look right. Could you type it again?",
		"es": "Mmm, ese correo no parece válido. ¿Puedes escribirlo de nuevo?",
		"pt": "Hmm, esse e-mail não parece válido. Pode digitar de novo?",
		"id": "Hmm, email itu sepertinya salah. Bisa ketik ulang?",
	},
	promptAskDetails: {
		"en": "Almost there! Please send your birthdate, gender and country, separated by commas (e.g. 1990-04-12, female, Brazil).",
		"es": "¡Ya casi! Envíame tu fecha de nacimiento, género y país, separados por comas (p. ej. 1990-04-12, mujer, México).",
		"pt": "Quase lá! Me envie sua data de nascimento, gênero e país, separados por vírgulas (ex.: 1990-04-12, feminino, Brasil).",
		"id": "Hampir selesai! Kirim tanggal lahir, jenis kelamin, dan negara Anda, dipisah koma (mis. 1990-04-12, perempuan, Indonesia).",
	},
	promptBadDetails: {
		"en": "I couldn't read that. Please use: birthdate (YYYY-MM-DD), gender, country, separated by commas.",
		"es": "No pude leer eso. Usa: fecha de nacimiento (AAAA-MM-DD), género, país, separados por comas.",
		"pt": "Não consegui ler isso. Use: data de nascimento (AAAA-MM-DD), gênero, país, separados por vírgulas.",
		"id": "Saya tidak bisa membacanya. Gunakan: tanggal lahir (YYYY-MM-DD), jenis kelamin, negara, dipisah koma.",
	},
	promptAskConsent: {
		"en": "Do you agree to our terms of use and privacy policy? (yes/no)",
		"es": "¿Aceptas nuestros términos de uso y política de privacidad? (sí/no)",
		"pt": "Você aceita nossos termos de uso e política de privacidade? (sim/não)",
		"id": "Apakah Anda setuju dengan ketentuan layanan dan kebijakan privasi kami? (ya/tidak)",
	},
	promptConfirm: {
		"en": "Here's what I have: %s. Shall I finish your registration? (yes/no)",
		"es": "Esto es lo que tengo: %s. ¿Completo tu registro? (sí/no)",
		"pt": "Isto é o que tenho: %s. Posso concluir seu cadastro? (sim/não)",
		"id": "Ini data Anda: %s. Boleh saya selesaikan pendaftarannya? (ya/tidak)",
	},
	promptConfirmAgain: {
		"en": "Just to be sure: should I finish your registration? A simple yes or no works.",
		"es": "Solo para confirmar: ¿completo tu registro? Con un sí o un no basta.",
		"pt": "Só para confirmar: concluo seu cadastro? Um sim ou não basta.",
		"id": "Sekadar memastikan: selesaikan pendaftarannya? Jawab ya atau tidak.",
	},
	promptWelcomeDone: {
		"en": "You're all set, %s! Your registration is complete. What can I help you with?",
		"es": "¡Listo, %s! Tu registro está completo. ¿En qué te puedo ayudar?",
		"pt": "Pronto, %s! Seu cadastro está completo. Em que posso ajudar?",
		"id": "Selesai, %s! Pendaftaran Anda lengkap. Ada yang bisa saya bantu?",
	},
	promptRestart: {
		"en": "No problem, let's start over. What's your full name?",
		"es": "Sin problema, empecemos de nuevo. ¿Cuál es tu nombre completo?",
		"pt": "Sem problema, vamos recomeçar. Qual é o seu nome completo?",
		"id": "Tidak masalah, kita ulang. Siapa nama lengkap Anda?",
	},
	promptExitConfirm: {
		"en": "Do you want to stop the registration for now? You can pick it up again any time. (yes/no)",
		"es": "¿Quieres pausar el registro por ahora? Puedes retomarlo cuando quieras. (sí/no)",
		"pt": "Quer pausar o cadastro por enquanto? Você pode retomar quando quiser. (sim/não)",
		"id": "Mau berhenti dulu dari pendaftaran? Anda bisa lanjut kapan saja. (ya/tidak)",
	},
	promptResume: {
		"en": "Let's pick up your registration where we left off. %s",
		"es": "Retomemos tu registro donde lo dejamos. %s",
		"pt": "Vamos retomar seu cadastro de onde paramos. %s",
		"id": "Mari lanjutkan pendaftaran dari posisi terakhir. %s",
	},
}

// promptFor returns the localized text for a purpose, falling back to
// English and finally to a hardcoded dependency-free apology.
func promptFor(purpose, langCode string) string {
	table, ok := promptTable[purpose]
	if !ok {
		return hardcodedApology
	}
	if langCode != "" {
		if text, ok := table[strings.ToLower(langCode)]; ok {
			return text
		}
	}
	if text, ok := table["en"]; ok {
		return text
	}
	return hardcodedApology
}

// hardcodedApology is the terminal fallback: no lookup, no dependency,
// guaranteed available when everything else failed.
const hardcodedApology = "Sorry, something went wrong. Please try again in a moment."
