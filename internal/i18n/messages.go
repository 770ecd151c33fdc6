package i18n

// entry holds one message key in every supported locale.
type entry struct {
	pt string
	en string
}

var messages = map[string]entry{
	// Flow page headings.
	"auth.subtitle.login":           {"Faça login para acessar sua plataforma", "Sign in to access your platform"},
	"auth.subtitle.register":        {"Crie sua conta na plataforma", "Create your platform account"},
	"auth.subtitle.forgot-password": {"Recupere o acesso à sua conta", "Recover access to your account"},
	"auth.subtitle.verify-email":    {"Confirme seu e-mail para continuar", "Confirm your email to continue"},

	// Validation.
	"auth.error.invalid_email":     {"Por favor, insira um e-mail válido", "Please enter a valid email address"},
	"auth.error.password_mismatch": {"As senhas não coincidem", "Passwords do not match"},
	"auth.error.weak_password":     {"Senha muito fraca. Siga as recomendações de segurança.", "Password too weak. Follow the security recommendations."},
	"auth.error.password_required": {"Informe sua senha", "Enter your password"},
	"auth.error.terms_required":    {"Você deve aceitar os Termos de Uso e Política de Privacidade", "You must accept the Terms of Use and Privacy Policy"},

	// Backend and unexpected failures.
	"auth.error.invalid_credentials": {"E-mail ou senha incorretos. Verifique suas credenciais.", "Incorrect email or password. Check your credentials."},
	"auth.error.already_registered":  {"Este e-mail já está cadastrado. Tente fazer login.", "This email is already registered. Try signing in."},
	"auth.error.rate_limited":        {"Muitas tentativas. Aguarde alguns instantes e tente novamente.", "Too many attempts. Wait a moment and try again."},
	"auth.error.unexpected":          {"Ocorreu um erro inesperado. Tente novamente.", "An unexpected error occurred. Please try again."},
	"auth.error.login_unexpected":    {"Erro inesperado ao fazer login", "Unexpected error while signing in"},
	"auth.error.register_unexpected": {"Erro inesperado ao criar conta", "Unexpected error while creating the account"},
	"auth.error.recovery_unexpected": {"Erro inesperado ao enviar e-mail de recuperação", "Unexpected error while sending the recovery email"},
	"auth.error.social":              {"Erro ao fazer login com %s", "Error signing in with %s"},
	"auth.error.social_unexpected":   {"Erro inesperado no login social", "Unexpected error during social sign-in"},
	"auth.error.resend":              {"Erro ao reenviar e-mail", "Error resending the email"},
	"auth.error.reset_unexpected":    {"Erro inesperado ao alterar senha", "Unexpected error while changing the password"},
	"auth.error.reset_link_invalid":  {"Link de recuperação inválido ou expirado. Solicite um novo.", "Invalid or expired recovery link. Request a new one."},
	"auth.error.auth_error":          {"Não foi possível concluir a autenticação. Tente novamente.", "Authentication could not be completed. Please try again."},
	"auth.error.unexpected_error":    {"Erro inesperado durante a autenticação.", "Unexpected error during authentication."},
	"auth.error.session_expired":     {"Sua sessão expirou. Faça login novamente.", "Your session has expired. Please sign in again."},
	"auth.error.invalid_request":     {"Requisição inválida. Recarregue a página e tente novamente.", "Invalid request. Reload the page and try again."},

	// Outcomes.
	"auth.success.registered":          {"Conta criada com sucesso! Verifique seu e-mail para confirmar sua conta.", "Account created! Check your email to confirm your account."},
	"auth.success.recovery_sent":       {"Enviamos instruções para seu e-mail. Verifique sua caixa de entrada.", "We sent instructions to your email. Check your inbox."},
	"auth.success.recovery_resent":     {"E-mail de recuperação reenviado!", "Recovery email sent again!"},
	"auth.success.verification_resent": {"E-mail de verificação reenviado!", "Verification email sent again!"},
	"auth.success.password_changed":    {"Senha alterada com sucesso! Redirecionando...", "Password changed! Redirecting..."},
	"auth.success.signed_out":          {"Você saiu da sua conta.", "You have signed out."},

	// Password strength meter.
	"strength.empty":            {"Digite uma senha", "Enter a password"},
	"strength.label.1":          {"Muito fraca", "Very weak"},
	"strength.label.2":          {"Fraca", "Weak"},
	"strength.label.3":          {"Regular", "Fair"},
	"strength.label.4":          {"Boa", "Good"},
	"strength.label.5":          {"Forte", "Strong"},
	"strength.missing":          {"Falta: %s", "Missing: %s"},
	"strength.criterion.length": {"Mínimo 8 caracteres", "At least 8 characters"},
	"strength.criterion.lower":  {"Letra minúscula", "Lowercase letter"},
	"strength.criterion.upper":  {"Letra maiúscula", "Uppercase letter"},
	"strength.criterion.digit":  {"Número", "Number"},
	"strength.criterion.symbol": {"Caractere especial", "Special character"},
	"strength.match":            {"As senhas coincidem", "Passwords match"},

	// Form labels.
	"form.email":                 {"E-mail", "Email"},
	"form.email_placeholder":     {"seu@email.com", "you@email.com"},
	"form.password":              {"Senha", "Password"},
	"form.confirm_password":      {"Confirmar senha", "Confirm password"},
	"form.full_name":             {"Nome completo", "Full name"},
	"form.full_name_placeholder": {"Seu nome completo", "Your full name"},
	"form.phone":                 {"Telefone", "Phone"},
	"form.remember_me":           {"Lembrar-me", "Remember me"},
	"form.forgot":                {"Esqueci minha senha", "Forgot my password"},
	"form.sign_in":               {"Entrar", "Sign in"},
	"form.create_account":        {"Criar conta", "Create account"},
	"form.terms":                 {"Aceito os Termos de Uso e a Política de Privacidade", "I accept the Terms of Use and the Privacy Policy"},
	"form.newsletter":            {"Quero receber novidades e atualizações por e-mail", "Send me news and updates by email"},
	"form.back_to_login":         {"Voltar ao login", "Back to sign in"},
	"form.have_account":          {"Já tem uma conta? Faça login", "Already have an account? Sign in"},
	"form.recovery_hint":         {"Digite seu e-mail para receber instruções de recuperação", "Enter your email to receive recovery instructions"},
	"form.send_instructions":     {"Enviar instruções", "Send instructions"},
	"form.resend_email":          {"Reenviar e-mail", "Resend email"},
	"form.resend_verification":   {"Reenviar e-mail de verificação", "Resend verification email"},
	"form.verify_hint":           {"Clique no link do e-mail para ativar sua conta. Não esqueça de verificar a pasta de spam!", "Click the link in the email to activate your account. Remember to check your spam folder!"},
	"form.social_divider":        {"Ou continue com", "Or continue with"},
	"form.social_note":           {"Não postaremos nada sem sua permissão", "We will never post without your permission"},
	"form.new_password":          {"Nova senha", "New password"},
	"form.confirm_new_password":  {"Confirmar nova senha", "Confirm new password"},
	"form.change_password":       {"Alterar senha", "Change password"},

	// Landing pages.
	"reset.subtitle":     {"Defina sua nova senha", "Choose your new password"},
	"callback.finishing": {"Finalizando autenticação...", "Finishing authentication..."},

	// Dashboard.
	"dashboard.welcome":         {"Bem-vindo, %s!", "Welcome, %s!"},
	"dashboard.welcome_back":    {"Bem-vindo!", "Welcome!"},
	"dashboard.subtitle":        {"Escolha um módulo para começar a trabalhar", "Choose a module to get started"},
	"dashboard.no_access":       {"Sem acesso", "No access"},
	"dashboard.profile_missing": {"Não foi possível carregar seu perfil. O acesso aos módulos está bloqueado.", "Your profile could not be loaded. Module access is blocked."},
	"dashboard.sign_out":        {"Sair", "Sign out"},
	"dashboard.back":            {"Voltar ao painel", "Back to dashboard"},
	"module.forbidden":          {"Você não tem acesso a este módulo.", "You do not have access to this module."},
	"module.placeholder":        {"Este módulo estará disponível em breve.", "This module will be available soon."},

	"role.admin":        {"Administrador", "Administrator"},
	"role.manager":      {"Gerente", "Manager"},
	"role.collaborator": {"Colaborador", "Collaborator"},

	"module.marketing.title":       {"Marketing", "Marketing"},
	"module.marketing.description": {"Campanhas, leads e análise de performance", "Campaigns, leads and performance analysis"},
	"module.crm.title":             {"CRM", "CRM"},
	"module.crm.description":       {"Gestão de clientes e relacionamentos", "Customer and relationship management"},
	"module.financial.title":       {"Financeiro", "Financial"},
	"module.financial.description": {"Controle financeiro e faturamento", "Financial control and billing"},
	"module.render.title":          {"Render", "Render"},
	"module.render.description":    {"Renderização e visualização 3D", "Rendering and 3D visualisation"},
	"module.processes.title":       {"Processos", "Processes"},
	"module.processes.description": {"Fluxos de trabalho e automação", "Workflows and automation"},
	"module.users.title":           {"Usuários", "Users"},
	"module.users.description":     {"Gestão de usuários e permissões", "User and permission management"},

	"footer.rights": {"© 2024 CooArq. Todos os direitos reservados.", "© 2024 CooArq. All rights reserved."},
}
