package chatbot

const (
	msgApology        = "Desculpe, ocorreu um erro ao processar sua mensagem. Tente novamente."
	msgAborted        = "Operação cancelada. Como posso ajudar?"
	msgNeedLogin      = "Você precisa estar logado para isso. Digite 'login' ou 'cadastro'."
	msgStaffOnly      = "Acesso negado. Apenas funcionários podem usar este comando."
	msgUnknown        = "Não entendi. Você pode agendar um horário, consultar documentos necessários ou falar com um atendente."
	msgDocumentos     = "Documentos necessários: CPF original, comprovante de residência e foto 3x4. Para CRNM, traga também o passaporte."
	msgAtendente      = "Fale com nosso atendente: telefone (61) 1234-5678, WhatsApp (61) 98765-4321."
	msgLocais         = "Nossos postos: Centro, Rua Principal, 123; Bairro, Av. Secundária, 456."
	msgLogout         = "Você foi desconectado. Até mais!"
	msgMenu           = "Opções: cadastro, login, agendar, meus agendamentos, alterar, cancelar, documentos."
	msgRelatorioMenu  = "Relatórios disponíveis: 1 agenda do dia, 2 comparecimento (30 dias), 3 serviços mais demandados (30 dias). Digite o número ou 'sair'."
	msgRelatorioError = "Opção inválida. Digite 1, 2, 3 ou 'sair'."
	msgRelatorioSaida = "Saindo do menu de relatórios."
)
