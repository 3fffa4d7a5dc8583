package bot

// Texts are plain; they are escaped with Sanitize when sent as MarkdownV2.

const defaultWelcomeText = "👋 Bem-vindo ao grupo VIP!\n\n" +
	"🔥 Conteúdo exclusivo, organizado e atualizado.\n\n" +
	"👇 Escolha uma opção:"

const textPayInstructions = "Para efetuar o pagamento, utilize a opção 'Pagar' > 'PIX copia e Cola' no aplicativo do seu banco.\n\n" +
	"Copie o código abaixo:"

const (
	textChoosePlan     = "Escolha uma oferta abaixo:"
	textPreparing      = "Aguarde um momento enquanto preparamos tudo :)"
	textAfterPayment   = "Após efetuar o pagamento, clique no botão abaixo ⤵️"
	textNotIdentified  = "Ops, parece que ainda não conseguimos identificar o seu pagamento :(  Se você já realizou o pagamento, clique aqui --> /status"
	textChargeFailed   = "Não foi possível gerar o PIX agora. Tente novamente em alguns minutos."
	textUnknownPlan    = "Plano indisponível"
	textNoSubscription = "Você não possui nenhuma assinatura atualmente"
	textActiveStatus   = "Status atual da sua assinatura - ATIVA\nExpira em: %s\nClique no botão abaixo para acessar"
	textPaymentOk      = "Olá usuário. Seu pagamento acabou de ser aprovado!"
	textAccessGroup    = "Acessar grupo:"
	textNoInvite       = "Não conseguimos gerar seu link de acesso agora. Nossa equipe já foi avisada e entrará em contato."
	textExpired        = "Olá usuário, sua assinatura para o bot acabou de expirar."
	textAdminsOnly     = "Somente admins."
	textSetVideoUsage  = "Responda a um VÍDEO com /setvideo para definir o vídeo de boas-vindas."
	textVideoUpdated   = "Vídeo inicial atualizado ✅"
	textSomethingWrong = "Algo deu errado. Tente novamente mais tarde."
	textHelp           = "/start - menu inicial\n/status - situação da sua assinatura\n/help - esta ajuda"
	textHelpAdmin      = "\n\nAdmin:\n/setvideo - responda a um vídeo para usá-lo nas boas-vindas"
)

const (
	btnUnlock    = "💎 Desbloquear VIP agora"
	btnPreviews  = "👀 Ver prévias grátis"
	btnPaid      = "EFETUEI O PAGAMENTO"
	btnQrCode    = "Qr code"
	btnShowPlans = "Exibir planos"
	btnGroup     = "Acessar grupo"
)
